package core

import (
	"math"
	"strings"
)

// Blend is the policy for combining assignments to one variable.
type Blend int

const (
	// Normal averages the contributions of a tick.
	Normal Blend = iota

	// Mix also averages.
	Mix

	// Add sums the contributions of a tick.
	Add

	// Discard ignores a new assignment while another is pending.
	Discard

	// Queue makes a new assignment wait for the pending one.
	Queue

	// Cancel lets a new assignment replace the pending one.
	Cancel
)

var blendNames = []string{"normal", "mix", "add", "discard", "queue", "cancel"}

func (b Blend) String() string {
	if b < 0 || int(b) >= len(blendNames) {
		return "unknown"
	}
	return blendNames[b]
}

// ParseBlend parses a blend name.
func ParseBlend(s string) (Blend, error) {
	s = strings.ToLower(s)
	for i, name := range blendNames {
		if name == s {
			return Blend(i), nil
		}
	}
	return Normal, &InvalidModifier{Modifier: "blend", Reason: "unknown policy " + s}
}

// exclusive reports whether the policy allows only one assignment at a
// time.
func (b Blend) exclusive() bool {
	return b == Discard || b == Queue || b == Cancel
}

// Attach records that an assignment is working on v.
func (s *Store) Attach(v *Variable) {
	v.nbAssigns++
}

// Detach undoes Attach and releases ownership held by owner.
func (s *Store) Detach(v *Variable, owner interface{}) {
	if 0 < v.nbAssigns {
		v.nbAssigns--
	}
	if v.active == owner {
		v.active = nil
	}
}

// Claim asks whether owner may start working on v.  Under Discard and
// Queue a second assignment is refused while another is pending;
// under Cancel the newcomer always wins.  Under Discard a value
// already written this tick counts as pending.
func (s *Store) Claim(v *Variable, owner interface{}) bool {
	if !v.Blend.exclusive() {
		return true
	}
	if v.Blend == Discard && v.active != owner && 0 < v.nbAverage {
		return false
	}
	if v.Blend == Cancel || v.active == nil || v.active == owner {
		v.active = owner
		return true
	}
	return false
}

// Owns reports whether owner still has the right to write v.  Only
// Cancel takes that right away.
func (s *Store) Owns(v *Variable, owner interface{}) bool {
	if v.Blend != Cancel {
		return true
	}
	return v.active == owner
}

// Fold combines a contribution into v according to its blend policy,
// then commits the clamped result.  Returns true if the rate
// constraint held the value back.
func (s *Store) Fold(v *Variable, x Value) bool {
	f, ok := x.Float()
	if !ok {
		v.value = x
		v.nbAverage++
		s.committed(v)
		return false
	}

	if v.nbAverage == 0 {
		v.acc = f
	} else {
		switch v.Blend {
		case Add:
			v.acc += f
		case Normal, Mix:
			n := float64(v.nbAverage)
			v.acc = (v.acc*n + f) / (n + 1)
		default:
			v.acc = f
		}
	}
	v.nbAverage++

	committed, clamped := s.clamp(v, v.acc)
	v.value = committed
	s.committed(v)
	return clamped
}

// clamp applies the range and then the rate constraint.  Clamping is
// logged.  The result reports whether the rate constraint changed the
// value, which means an assignment needs another pass.
func (s *Store) clamp(v *Variable, f float64) (Value, bool) {
	want := f
	if v.HasRange {
		f = math.Max(v.RangeMin, math.Min(v.RangeMax, f))
	}
	ranged := f
	if 0 < v.RateMax {
		if prev, ok := v.prev.Float(); ok {
			step := v.RateMax * seconds(s.rt.Period())
			if f > prev+step {
				f = prev + step
			} else if f < prev-step {
				f = prev - step
			}
		}
	}
	if f != want {
		s.rt.Logger.Warn("clamped", "var", v.Name, "want", want, "got", f)
	}
	return Num(f), f != ranged
}
