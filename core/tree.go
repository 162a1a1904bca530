package core

// The directive tree lives in an arena.  Handles are indexes into
// Scheduler.slots; a parent refers to its children by handle and a
// child knows its parent and its slot in the parent.  Splicing is
// rewriting the parent's child handle.

type root struct {
	h    Handle
	conn Conn
}

func (s *Scheduler) get(h Handle) *Directive {
	if h < 0 || int(h) >= len(s.slots) {
		return nil
	}
	return s.slots[h]
}

func (s *Scheduler) alloc() Handle {
	s.nextId++
	var h Handle
	if n := len(s.free); 0 < n {
		h = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		h = Handle(len(s.slots))
		s.slots = append(s.slots, &Directive{})
	}
	*s.slots[h] = Directive{
		Id:     s.nextId,
		Kids:   [2]Handle{NoHandle, NoHandle},
		parent: NoHandle,
		inUse:  true,
	}
	s.live++
	return h
}

// materialize instantiates a plan.  A Self plan is replaced by the
// given handle.
func (s *Scheduler) materialize(p *Plan, self Handle, conn Conn) Handle {
	if p == nil {
		return NoHandle
	}
	if p.Self {
		d := s.get(self)
		if d == nil {
			return NoHandle
		}
		d.Persistent = true
		d.Status = Queued
		return self
	}

	h := s.alloc()
	if p.Leaf != nil {
		s.slots[h].Leaf = p.Leaf.Fresh()
	} else {
		s.slots[h].Mode = p.Mode
		for i, kp := range []*Plan{p.Left, p.Right} {
			k := s.materialize(kp, self, conn)
			if k == NoHandle {
				continue
			}
			s.slots[h].Kids[i] = k
			s.slots[k].parent = h
			s.slots[k].slot = i
			s.slots[k].anchor = nil
		}
	}
	d := s.slots[h]
	d.Frame = p.Frame
	d.Conn = conn
	if p.Tag != "" {
		d.Tag = p.Tag
		s.rt.Tags.SetTag(p.Tag, h)
	}
	return h
}

// usesSelf reports whether the plan refers to the leaf it replaces.
func usesSelf(p *Plan) bool {
	if p == nil {
		return false
	}
	return p.Self || usesSelf(p.Left) || usesSelf(p.Right)
}

// position is where a directive sits: a parent's slot or a root.
type position struct {
	parent Handle
	slot   int
	anchor *root
}

func (s *Scheduler) positionOf(h Handle) position {
	d := s.slots[h]
	return position{parent: d.parent, slot: d.slot, anchor: d.anchor}
}

// placeAt puts h at the position.
func (s *Scheduler) placeAt(pos position, h Handle) {
	d := s.slots[h]
	d.parent, d.slot, d.anchor = pos.parent, pos.slot, pos.anchor
	if pos.parent == NoHandle {
		if pos.anchor != nil {
			pos.anchor.h = h
		}
		return
	}
	s.slots[pos.parent].Kids[pos.slot] = h
}

// place puts h where old was.
func (s *Scheduler) place(old, h Handle) {
	pos := s.positionOf(old)
	s.placeAt(pos, h)
	o := s.slots[old]
	o.parent, o.anchor = NoHandle, nil
}

// exec makes the Exec for a directive.
func (s *Scheduler) exec(h Handle, frame *Frame, tag string) *Exec {
	d := s.slots[h]
	if d.Tag != "" {
		tag = d.Tag
	}
	return &Exec{
		Runtime: s.rt,
		Sched:   s,
		Handle:  h,
		Frame:   frame,
		Tag:     tag,
		Conn:    d.Conn,
	}
}

// release frees the subtree at h.
func (s *Scheduler) release(h Handle) {
	pending := []Handle{h}
	for 0 < len(pending) {
		h := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		d := s.get(h)
		if d == nil || !d.inUse {
			continue
		}
		for _, k := range d.Kids {
			if k != NoHandle {
				pending = append(pending, k)
			}
		}
		s.releaseNode(h)
	}
}

// releaseNode frees one node (not its children).
func (s *Scheduler) releaseNode(h Handle) {
	d := s.slots[h]
	if r, is := d.Leaf.(Releaser); is {
		r.Release(s.exec(h, d.Frame, ""))
	}
	if d.Tag != "" {
		s.rt.Tags.UnsetTag(d.Tag, h)
	}
	*d = Directive{parent: NoHandle, Kids: [2]Handle{NoHandle, NoHandle}}
	s.free = append(s.free, h)
	s.live--
}

// morph replaces the leaf at h with the materialized plan and
// returns the handle of the replacement.
func (s *Scheduler) morph(h Handle, p *Plan) Handle {
	d := s.slots[h]
	self := usesSelf(p)
	conn := d.Conn
	d.Status = Morphed
	pos := s.positionOf(h)

	nh := s.materialize(p, h, conn)
	if nh == h {
		return h
	}
	n := s.slots[nh]
	s.placeAt(pos, nh)
	if !self {
		d.parent, d.anchor = NoHandle, nil
	}

	if d.Tag != "" {
		tag := d.Tag
		s.rt.Tags.UnsetTag(tag, h)
		d.Tag = ""
		if n.Tag == "" {
			n.Tag = tag
			s.rt.Tags.SetTag(tag, nh)
		} else {
			wrap := s.alloc()
			w := s.slots[wrap]
			w.Mode = ModeAnd
			w.Conn = conn
			w.Tag = tag
			s.rt.Tags.SetTag(tag, wrap)
			s.place(nh, wrap)
			w.Kids[0] = nh
			n.parent, n.slot = wrap, 0
			nh, n = wrap, w
		}
	}
	n.Detached = d.Detached
	n.frozen = d.frozen

	if self {
		d.Detached = false
		d.frozen = false
	} else {
		s.releaseNode(h)
	}
	return nh
}
