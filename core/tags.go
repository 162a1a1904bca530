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

import (
	"sort"
	"strings"
)

// TagEntry is one node of the tag hierarchy.
//
// An entry exists while it has a holder, a child, or a sticky flag
// (frozen or blocked).
type TagEntry struct {
	Name string

	frozen  bool
	blocked bool

	holders  map[Handle]struct{}
	children map[string]*TagEntry
	parent   *TagEntry
}

func (e *TagEntry) empty() bool {
	return len(e.holders) == 0 && len(e.children) == 0 && !e.frozen && !e.blocked
}

// Tags is the registry of tag entries keyed by full dotted name.
type Tags struct {
	entries map[string]*TagEntry
}

// NewTags makes an empty registry.
func NewTags() *Tags {
	return &Tags{
		entries: make(map[string]*TagEntry),
	}
}

// parentName returns "a.b" for "a.b.c" and "" for "a".
func parentName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}

// ensure finds or creates the entry for name and its ancestors.
func (ts *Tags) ensure(name string) *TagEntry {
	if e, have := ts.entries[name]; have {
		return e
	}
	e := &TagEntry{
		Name:     name,
		holders:  make(map[Handle]struct{}),
		children: make(map[string]*TagEntry),
	}
	ts.entries[name] = e
	if p := parentName(name); p != "" {
		e.parent = ts.ensure(p)
		e.parent.children[name] = e
	}
	return e
}

// prune removes e and then its ancestors as long as they are empty.
func (ts *Tags) prune(e *TagEntry) {
	for e != nil && e.empty() {
		delete(ts.entries, e.Name)
		p := e.parent
		if p != nil {
			delete(p.children, e.Name)
		}
		e.parent = nil
		e = p
	}
}

// Exists reports whether there is an entry for name.
func (ts *Tags) Exists(name string) bool {
	_, have := ts.entries[name]
	return have
}

// Len is the number of live entries.
func (ts *Tags) Len() int {
	return len(ts.entries)
}

// SetTag makes h a holder of name.
func (ts *Tags) SetTag(name string, h Handle) {
	if name == "" {
		return
	}
	ts.ensure(name).holders[h] = struct{}{}
}

// UnsetTag removes h as a holder of name.
func (ts *Tags) UnsetTag(name string, h Handle) {
	e, have := ts.entries[name]
	if !have {
		return
	}
	delete(e.holders, h)
	ts.prune(e)
}

// Holders returns the directives holding exactly name, sorted.
func (ts *Tags) Holders(name string) []Handle {
	e, have := ts.entries[name]
	if !have {
		return nil
	}
	return sortedHandles(e.holders)
}

// Stop returns the holders of name and of every entry below it.
// The caller marks them for deletion.  Unknown names give nil.
func (ts *Tags) Stop(name string) []Handle {
	e, have := ts.entries[name]
	if !have {
		return nil
	}
	acc := make(map[Handle]struct{})
	pending := []*TagEntry{e}
	for 0 < len(pending) {
		e := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for h := range e.holders {
			acc[h] = struct{}{}
		}
		for _, c := range e.children {
			pending = append(pending, c)
		}
	}
	return sortedHandles(acc)
}

// Freeze sets the frozen flag on an existing entry.
func (ts *Tags) Freeze(name string) bool {
	e, have := ts.entries[name]
	if !have {
		return false
	}
	e.frozen = true
	return true
}

// Unfreeze clears the frozen flag.
func (ts *Tags) Unfreeze(name string) bool {
	e, have := ts.entries[name]
	if !have {
		return false
	}
	e.frozen = false
	ts.prune(e)
	return true
}

// Block sets the blocked flag on an existing entry.
func (ts *Tags) Block(name string) bool {
	e, have := ts.entries[name]
	if !have {
		return false
	}
	e.blocked = true
	return true
}

// Unblock clears the blocked flag.
func (ts *Tags) Unblock(name string) bool {
	e, have := ts.entries[name]
	if !have {
		return false
	}
	e.blocked = false
	ts.prune(e)
	return true
}

// deepest returns the entry for name or for its closest existing
// ancestor.
func (ts *Tags) deepest(name string) *TagEntry {
	for name != "" {
		if e, have := ts.entries[name]; have {
			return e
		}
		name = parentName(name)
	}
	return nil
}

// IsFrozen reports whether name or any ancestor is frozen.
func (ts *Tags) IsFrozen(name string) bool {
	for e := ts.deepest(name); e != nil; e = e.parent {
		if e.frozen {
			return true
		}
	}
	return false
}

// IsBlocked reports whether name or any ancestor is blocked.
func (ts *Tags) IsBlocked(name string) bool {
	for e := ts.deepest(name); e != nil; e = e.parent {
		if e.blocked {
			return true
		}
	}
	return false
}

func sortedHandles(m map[Handle]struct{}) []Handle {
	acc := make([]Handle, 0, len(m))
	for h := range m {
		acc = append(acc, h)
	}
	sort.Slice(acc, func(i, j int) bool { return acc[i] < acc[j] })
	return acc
}
