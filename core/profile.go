package core

import (
	"math"
	"time"
)

// Modifiers are the options of an assignment.  At most one of Time,
// Speed, Accel, Smooth and Sin may be given.
type Modifiers struct {
	// Time is a duration in milliseconds.
	Time Expr

	// Speed is a rate in units per second.
	Speed Expr

	// Accel is an acceleration in units per second per second.
	Accel Expr

	// Smooth is a duration in milliseconds.
	Smooth Expr

	// Sin is a period in milliseconds.  Ampli and Phase (radians)
	// go with it.
	Sin   Expr
	Ampli Expr
	Phase Expr

	// GetPhase names a variable that receives the current phase of
	// a Sin profile.
	GetPhase string

	// Adaptive re-targets every tick and completes within the
	// variable's delta of the target.
	Adaptive bool

	// Normalized means the target (and a Speed) are fractions of
	// the variable's range.
	Normalized bool
}

// IsZero reports whether no modifier is set.
func (m Modifiers) IsZero() bool {
	return m.Time == nil && m.Speed == nil && m.Accel == nil && m.Smooth == nil &&
		m.Sin == nil && !m.Adaptive && !m.Normalized
}

func (m Modifiers) check() error {
	n := 0
	for _, e := range []Expr{m.Time, m.Speed, m.Accel, m.Smooth, m.Sin} {
		if e != nil {
			n++
		}
	}
	if 1 < n {
		return &InvalidModifier{Modifier: "time/speed/accel/smooth/sin", Reason: "at most one allowed"}
	}
	if m.Adaptive && (m.Accel != nil || m.Smooth != nil || m.Sin != nil) {
		return &InvalidModifier{Modifier: "adaptive", Reason: "only with time or speed"}
	}
	if (m.Ampli != nil || m.Phase != nil || m.GetPhase != "") && m.Sin == nil {
		return &InvalidModifier{Modifier: "ampli/phase/getphase", Reason: "only with sin"}
	}
	return nil
}

type profileKind int

const (
	profileNone profileKind = iota
	profileTime
	profileSpeed
	profileAccel
	profileSmooth
	profileSin
)

// profile is the state of a motion profile.
type profile struct {
	kind     profileKind
	adaptive bool

	start, target float64

	dur   time.Duration
	rate  float64
	accel float64

	// sin
	period time.Duration
	ampli  float64
	phase  float64
}

// setup computes the profile's parameters for an assignment that
// starts now.
func (p *profile) setup(x *Exec, v *Variable, m Modifiers, start, target float64) error {
	rt := x.Runtime
	p.start, p.target = start, target
	p.adaptive = m.Adaptive
	delta := math.Abs(target - start)

	num := func(e Expr, name string) (float64, error) {
		return evalNumber(rt, x.Frame, e, name)
	}

	switch {
	case m.Time != nil, m.Smooth != nil:
		e, name := m.Time, "time"
		p.kind = profileTime
		if m.Smooth != nil {
			e, name = m.Smooth, "smooth"
			p.kind = profileSmooth
		}
		ms, err := num(e, name)
		if err != nil {
			return err
		}
		if ms < 0 {
			return &InvalidModifier{Modifier: name, Reason: "negative duration"}
		}
		p.dur = millis(ms)
		if !p.adaptive {
			p.dur = p.constrain(x, v, delta, p.dur)
		}

	case m.Speed != nil:
		r, err := num(m.Speed, "speed")
		if err != nil {
			return err
		}
		if r <= 0 {
			return &InvalidModifier{Modifier: "speed", Reason: "must be positive"}
		}
		if m.Normalized {
			r *= v.Width()
		}
		if 0 < v.RateMax && v.RateMax < r {
			x.Warn("speed above speedmax", "var", v.Name, "speed", r, "speedmax", v.RateMax)
			r = v.RateMax
		}
		if 0 < v.RateMin && r < v.RateMin {
			x.Warn("speed below speedmin", "var", v.Name, "speed", r, "speedmin", v.RateMin)
			r = v.RateMin
		}
		p.kind = profileSpeed
		p.rate = r
		p.dur = time.Duration(delta / r * float64(time.Second))

	case m.Accel != nil:
		a, err := num(m.Accel, "accel")
		if err != nil {
			return err
		}
		if a <= 0 {
			return &InvalidModifier{Modifier: "accel", Reason: "must be positive"}
		}
		p.kind = profileAccel
		p.accel = a
		p.dur = time.Duration(math.Sqrt(2*delta/a) * float64(time.Second))

	case m.Sin != nil:
		ms, err := num(m.Sin, "sin")
		if err != nil {
			return err
		}
		if ms <= 0 {
			return &InvalidModifier{Modifier: "sin", Reason: "period must be positive"}
		}
		p.kind = profileSin
		p.period = millis(ms)
		if m.Ampli != nil {
			if p.ampli, err = num(m.Ampli, "ampli"); err != nil {
				return err
			}
		}
		if m.Phase != nil {
			if p.phase, err = num(m.Phase, "phase"); err != nil {
				return err
			}
		}

	default:
		p.kind = profileNone
	}
	return nil
}

// constrain adjusts a duration so the implied rate is within the
// variable's limits.
func (p *profile) constrain(x *Exec, v *Variable, delta float64, dur time.Duration) time.Duration {
	if delta == 0 {
		return dur
	}
	if 0 < v.RateMax {
		least := time.Duration(delta / v.RateMax * float64(time.Second))
		if dur < least {
			x.Warn("duration inflated by speedmax", "var", v.Name, "want", dur, "got", least)
			dur = least
		}
	}
	if 0 < v.RateMin {
		most := time.Duration(delta / v.RateMin * float64(time.Second))
		if most < dur {
			x.Warn("duration shortened by speedmin", "var", v.Name, "want", dur, "got", most)
			dur = most
		}
	}
	return dur
}

// step returns the value for this tick and whether the profile has
// reached its target.  cur is the variable's current value and
// target the current target (which only matters for adaptive and
// sin profiles).
func (p *profile) step(rt *Runtime, elapsed time.Duration, cur, target float64, delta float64) (float64, bool) {
	if p.adaptive {
		return p.adapt(rt, cur, target, delta)
	}

	progress := 1.0
	if 0 < p.dur {
		progress = math.Min(1, float64(elapsed)/float64(p.dur))
	}
	d := p.target - p.start

	switch p.kind {
	case profileTime, profileSpeed:
		return p.start + d*progress, 1 <= progress
	case profileSmooth:
		return p.start + d*(1-math.Cos(math.Pi*progress))/2, 1 <= progress
	case profileAccel:
		if 1 <= progress {
			return p.target, true
		}
		t := seconds(elapsed)
		return p.start + math.Copysign(0.5*p.accel*t*t, d), false
	case profileSin:
		return target + p.ampli*math.Sin(p.phaseAt(elapsed)), false
	}
	return p.target, true
}

// phaseAt is the sin phase after elapsed, in [0, 2π).
func (p *profile) phaseAt(elapsed time.Duration) float64 {
	ph := 2*math.Pi*float64(elapsed)/float64(p.period) + p.phase
	return math.Mod(ph, 2*math.Pi)
}

// adapt moves toward a target that may change every tick.
func (p *profile) adapt(rt *Runtime, cur, target, delta float64) (float64, bool) {
	gap := target - cur
	var next float64
	switch p.kind {
	case profileTime:
		k := 1.0
		if 0 < p.dur {
			k = math.Min(1, float64(rt.Period())/float64(p.dur))
		}
		next = cur + gap*k
	case profileSpeed:
		stepMax := p.rate * seconds(rt.Period())
		if math.Abs(gap) <= stepMax {
			next = target
		} else {
			next = cur + math.Copysign(stepMax, gap)
		}
	default:
		next = target
	}
	return next, math.Abs(target-next) <= delta
}
