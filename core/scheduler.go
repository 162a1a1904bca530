/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

var (
	// DefaultControl will be used by NewScheduler.
	DefaultControl = &Control{
		Limit: 100,
	}
)

// Control influences how a tick operates.
type Control struct {
	// Limit is the maximum number of nested morphs along one path
	// in one tick.  A replacement past the limit waits for the
	// next tick.
	Limit int
}

func (c *Control) Copy() *Control {
	return &Control{
		Limit: c.Limit,
	}
}

// Scheduler owns the directive trees and advances them once per
// tick.
//
// A Scheduler is not safe for concurrent use.  The boundary (see
// package sio) holds one lock around "receive then tick".
type Scheduler struct {
	rt *Runtime

	// Simplify enables splicing a combinator's survivor into the
	// combinator's place when the other child is done.
	Simplify bool

	Control *Control

	slots []*Directive
	free  []Handle
	live  int

	roots []*root
	mains map[string]*root

	nextId  uint64
	ticking bool
	pending []func()
}

// NewScheduler makes a Scheduler for the runtime.
func NewScheduler(rt *Runtime) *Scheduler {
	return &Scheduler{
		rt:       rt,
		Simplify: true,
		Control:  DefaultControl.Copy(),
		mains:    make(map[string]*root),
	}
}

// Runtime returns the scheduler's runtime.
func (s *Scheduler) Runtime() *Runtime {
	return s.rt
}

// Size is the number of live directives.
func (s *Scheduler) Size() int {
	return s.live
}

// Idle reports whether there's nothing left to run.
func (s *Scheduler) Idle() bool {
	for _, r := range s.roots {
		if r.h != NoHandle {
			return false
		}
	}
	return true
}

// Get returns the directive with the given handle, or nil if that
// handle isn't in use.
func (s *Scheduler) Get(h Handle) *Directive {
	d := s.get(h)
	if d == nil || !d.inUse {
		return nil
	}
	return d
}

func connId(c Conn) string {
	if c == nil {
		return ""
	}
	return c.Id()
}

// Execute starts the plan in parallel with everything else.
func (s *Scheduler) Execute(c Conn, p *Plan) Handle {
	h := s.materialize(p, NoHandle, c)
	if h == NoHandle {
		return h
	}
	r := &root{h: h, conn: c}
	s.slots[h].anchor = r
	s.roots = append(s.roots, r)
	return h
}

// Append starts the plan after the work previously appended for the
// same connection.  When called during a tick, the plan is attached
// when the tick is over.
func (s *Scheduler) Append(c Conn, p *Plan) {
	if s.ticking {
		s.pending = append(s.pending, func() {
			s.Append(c, p)
		})
		return
	}
	id := connId(c)
	if r, have := s.mains[id]; have && r.h != NoHandle {
		h := s.materialize(p, NoHandle, c)
		if h == NoHandle {
			return
		}
		seq := s.alloc()
		q := s.slots[seq]
		q.Mode = ModeSeq
		q.Conn = c
		old := r.h
		s.placeAt(s.positionOf(old), seq)
		q.Kids = [2]Handle{old, h}
		for i, k := range q.Kids {
			kd := s.slots[k]
			kd.parent, kd.slot, kd.anchor = seq, i, nil
		}
		return
	}
	h := s.Execute(c, p)
	if h != NoHandle {
		s.mains[id] = s.slots[h].anchor
	}
}

// Stop marks everything holding tag (or a tag below it) for
// deletion.  Unknown tags are ignored.
func (s *Scheduler) Stop(tag string) {
	for _, h := range s.rt.Tags.Stop(tag) {
		if d := s.Get(h); d != nil {
			d.toDelete = true
		}
	}
}

func (s *Scheduler) Freeze(tag string)   { s.rt.Tags.Freeze(tag) }
func (s *Scheduler) Unfreeze(tag string) { s.rt.Tags.Unfreeze(tag) }
func (s *Scheduler) Block(tag string)    { s.rt.Tags.Block(tag) }
func (s *Scheduler) Unblock(tag string)  { s.rt.Tags.Unblock(tag) }

// StopConn marks all of a connection's directives for deletion.
func (s *Scheduler) StopConn(c Conn) {
	id := connId(c)
	for _, r := range s.roots {
		if r.h != NoHandle && connId(r.conn) == id {
			s.slots[r.h].toDelete = true
		}
	}
}

// Tick advances every tree by one step.
func (s *Scheduler) Tick() {
	s.rt.tick++
	s.rt.Store.BeginTick()
	s.ticking = true

	// Roots started during the tick run in the same tick.
	for i := 0; i < len(s.roots); i++ {
		r := s.roots[i]
		if r.h == NoHandle {
			continue
		}
		s.run(r)
	}

	s.ticking = false
	s.rt.Events.EndTick(s.rt.tick)

	live := s.roots[:0]
	for _, r := range s.roots {
		if r.h != NoHandle {
			live = append(live, r)
		}
	}
	for i := len(live); i < len(s.roots); i++ {
		s.roots[i] = nil
	}
	s.roots = live
	for id, r := range s.mains {
		if r.h == NoHandle {
			delete(s.mains, id)
		}
	}

	pending := s.pending
	s.pending = nil
	for _, f := range pending {
		f()
	}
}

// visit is an entry on the walk's explicit stack.
type visit struct {
	h      Handle
	phase  int
	frame  *Frame
	tag    string
	morphs int
}

// run walks one tree depth first without recursion.
func (s *Scheduler) run(r *root) {
	stack := []visit{{h: r.h}}
	for 0 < len(stack) {
		top := &stack[len(stack)-1]
		d := s.slots[top.h]

		switch top.phase {
		case 0:
			if d.toDelete || (d.Tag != "" && s.rt.Tags.IsBlocked(d.Tag)) {
				d.toDelete = true
				d.Status = Completed
				stack = stack[:len(stack)-1]
				continue
			}
			if d.Tag != "" && s.rt.Tags.IsFrozen(d.Tag) {
				if !d.frozen {
					d.frozen = true
					s.notifyFreeze(d, true)
				}
				stack = stack[:len(stack)-1]
				continue
			}
			if d.frozen {
				d.frozen = false
				s.notifyFreeze(d, false)
			}

			if d.Tag != "" {
				top.tag = d.Tag
			}
			if d.Frame != nil {
				top.frame = d.Frame
			}

			if d.Leaf != nil {
				out := d.Leaf.Execute(s.exec(top.h, top.frame, top.tag))
				if out.Status != Morphed {
					if out.Status < Queued || Morphed <= out.Status {
						out.Status = Completed
					}
					d.Status = out.Status
					stack = stack[:len(stack)-1]
					continue
				}
				switch {
				case out.Plan == nil:
					d.Status = Completed
				case out.Plan.Self:
					d.Status = Running
				default:
					parentTag, parentFrame := s.context(stack)
					nh := s.morph(top.h, out.Plan)
					top.morphs++
					if s.Control.Limit < top.morphs {
						s.rt.Logger.Warn("morph limit", "limit", s.Control.Limit, "tag", parentTag)
						s.slots[nh].Status = Queued
						break
					}
					*top = visit{h: nh, frame: parentFrame, tag: parentTag, morphs: top.morphs}
					continue
				}
				stack = stack[:len(stack)-1]
				continue
			}

			if d.Status == Queued {
				d.Status = Running
			}
			top.phase = 1
			if k := d.Kids[0]; k != NoHandle {
				stack = append(stack, visit{h: k, frame: top.frame, tag: top.tag, morphs: top.morphs})
			}

		case 1:
			s.reap(top.h, 0)
			top.phase = 2
			if k := d.Kids[1]; k != NoHandle && s.startSecond(d) {
				stack = append(stack, visit{h: k, frame: top.frame, tag: top.tag, morphs: top.morphs})
			}

		case 2:
			s.reap(top.h, 1)
			s.settle(top.h)
			stack = stack[:len(stack)-1]
		}
	}

	if d := s.slots[r.h]; d.Status == Completed {
		s.release(r.h)
		r.h = NoHandle
	}
}

// context is the tag and frame that the entry below the top of the
// stack passes to its children.
func (s *Scheduler) context(stack []visit) (string, *Frame) {
	if len(stack) < 2 {
		return "", nil
	}
	p := stack[len(stack)-2]
	return p.tag, p.frame
}

func (s *Scheduler) notifyFreeze(d *Directive, frozen bool) {
	s.rt.Logger.Debug("freeze", "tag", d.Tag, "directive", d.Describe(), "frozen", frozen)
	if s.rt.OnFreeze != nil {
		s.rt.OnFreeze(d, frozen)
	}
}

// reap frees the child in slot i if it's done.
func (s *Scheduler) reap(h Handle, i int) {
	d := s.slots[h]
	k := d.Kids[i]
	if k == NoHandle {
		return
	}
	if s.slots[k].Status == Completed {
		s.release(k)
		d.Kids[i] = NoHandle
	}
}

// startSecond decides whether to visit the second child this tick.
func (s *Scheduler) startSecond(d *Directive) bool {
	switch d.Mode {
	case ModeAnd, ModeComma:
		return true
	}
	first := d.Kids[0]
	if first != NoHandle && !s.slots[first].effective().finished() {
		return false
	}
	if d.Mode == ModePipe {
		return true
	}
	if d.ready == 0 {
		d.ready = s.rt.tick + 1
		return false
	}
	return d.ready <= s.rt.tick
}

func (s *Scheduler) kidStatus(k Handle) Status {
	if k == NoHandle {
		return Completed
	}
	return s.slots[k].effective()
}

// settle computes a combinator's status after its children were
// visited and splices a lone survivor into its place.
func (s *Scheduler) settle(h Handle) {
	d := s.slots[h]
	st0, st1 := s.kidStatus(d.Kids[0]), s.kidStatus(d.Kids[1])

	switch {
	case st0 == Completed && st1 == Completed:
		d.Status = Completed
		return
	case d.Mode == ModeComma:
		if st1 == Completed || st1 == Background {
			d.Status = Background
		} else {
			d.Status = Running
		}
	case st0 == Background && st1 == Background,
		st0 == Background && st1 == Completed,
		st0 == Completed && st1 == Background:
		d.Status = Background
	default:
		d.Status = Running
	}

	if !s.Simplify || d.Frame != nil {
		return
	}

	var survivor Handle
	switch {
	case d.Kids[0] == NoHandle:
		survivor = d.Kids[1]
	case d.Kids[1] == NoHandle:
		survivor = d.Kids[0]
	default:
		return
	}
	sd := s.slots[survivor]
	if d.Tag != "" && sd.Tag != "" {
		return
	}
	if d.Mode == ModeComma && d.Kids[1] == NoHandle {
		sd.Detached = true
	}
	if d.Detached {
		sd.Detached = true
	}
	if d.Tag != "" {
		s.rt.Tags.UnsetTag(d.Tag, h)
		sd.Tag = d.Tag
		s.rt.Tags.SetTag(sd.Tag, survivor)
		d.Tag = ""
	}
	s.place(h, survivor)
	d.Kids = [2]Handle{NoHandle, NoHandle}
	s.releaseNode(h)
}
