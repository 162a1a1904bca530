package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestBlendMix(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "x")
	if err := rt.Store.Lookup("x").SetProp("blend", Str("mix")); err != nil {
		t.Fatal(err)
	}

	s.Execute(conn, And(assign("x", N(2)), assign("x", N(4))))
	ticks(s, clock, 1)
	if got := num(t, rt, "x"); got != 3 {
		t.Fatal(got)
	}
}

func TestBlendAddSingle(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "a", "n")
	rt.Store.Lookup("a").Blend = Add

	s.Execute(conn, And(assign("a", N(7)), assign("n", N(7))))
	ticks(s, clock, 1)
	if num(t, rt, "a") != num(t, rt, "n") {
		t.Fatal("one contribution should mean the same under add and normal")
	}

	s.Execute(conn, And(assign("a", N(1)), assign("a", N(2))))
	ticks(s, clock, 1)
	if got := num(t, rt, "a"); got != 3 {
		t.Fatal(got)
	}
}

func TestBlendDiscard(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")
	rt.Store.Lookup("v").Blend = Discard

	s.Execute(conn, And(
		Do(&Assign{Name: "v", Value: N(10), Mods: Modifiers{Time: N(2000)}}),
		assign("v", N(20))))
	ticks(s, clock, 3)
	if got := num(t, rt, "v"); got != 10 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("not idle")
	}
}

func TestBlendDiscardSameTick(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")
	rt.Store.Lookup("v").Blend = Discard

	s.Execute(conn, And(assign("v", N(2)), assign("v", N(4))))
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != 2 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("discarded assignment should complete")
	}

	s.Execute(conn, assign("v", N(4)))
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != 4 {
		t.Fatal(got)
	}
}

func TestBlendQueue(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")
	rt.Store.Lookup("v").Blend = Queue

	s.Execute(conn, And(
		Do(&Assign{Name: "v", Value: N(10), Mods: Modifiers{Time: N(1000)}}),
		assign("v", N(20))))
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != 0 {
		t.Fatal(got)
	}
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != 20 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("not idle")
	}
}

func TestBlendCancel(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")
	rt.Store.Lookup("v").Blend = Cancel

	s.Execute(conn, Do(&Assign{Name: "v", Value: N(10), Mods: Modifiers{Time: N(2000)}}))
	ticks(s, clock, 1)
	s.Execute(conn, assign("v", N(-10)))
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != -10 {
		t.Fatal(got)
	}
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != -10 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("cancelled assignment should have completed")
	}
	if 0 < len(conn.errs) {
		t.Fatal(conn.errs[0])
	}
}

func TestRangeClamp(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")
	v := rt.Store.Lookup("v")
	if err := v.SetProp("rangemax", Num(5)); err != nil {
		t.Fatal(err)
	}
	if err := v.SetProp("rangemin", Num(-5)); err != nil {
		t.Fatal(err)
	}

	s.Execute(conn, assign("v", N(10)))
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != 5 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("range clamping shouldn't keep an assignment going")
	}

	rt.Store.Set(v, Num(-100))
	if got := num(t, rt, "v"); got != -5 {
		t.Fatal(got)
	}
}

func TestNormalized(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")
	v := rt.Store.Lookup("v")
	v.SetProp("rangemin", Num(10))
	v.SetProp("rangemax", Num(20))

	s.Execute(conn, Do(&Assign{Name: "v", Value: N(0.5), Mods: Modifiers{Normalized: true}}))
	ticks(s, clock, 1)
	if got := num(t, rt, "v"); got != 15 {
		t.Fatal(got)
	}
}

func TestSpeedProfile(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")

	s.Execute(conn, Do(&Assign{Name: "v", Value: N(4), Mods: Modifiers{Speed: N(2)}}))
	var got []float64
	for i := 0; i < 3; i++ {
		ticks(s, clock, 1)
		got = append(got, num(t, rt, "v"))
	}
	if got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("not idle")
	}
}

func TestSmoothAndAccelProfiles(t *testing.T) {
	for _, tc := range []struct {
		name string
		mods Modifiers
		want []float64
	}{
		{"smooth", Modifiers{Smooth: N(2000)}, []float64{0, 5, 10}},
		{"accel", Modifiers{Accel: N(5)}, []float64{0, 2.5, 10}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, clock, conn := newTestScheduler()
			rt := s.Runtime()
			declare(rt, "v")

			s.Execute(conn, Do(&Assign{Name: "v", Value: N(10), Mods: tc.mods}))
			for i, want := range tc.want {
				ticks(s, clock, 1)
				if got := num(t, rt, "v"); math.Abs(got-want) > 1e-9 {
					t.Fatalf("tick %d: %v != %v", i, got, want)
				}
			}
			if !s.Idle() {
				t.Fatal("should be done when the target is reached")
			}
		})
	}
}

func TestAdaptiveFollowsTarget(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v", "goal")
	rt.Store.Lookup("v").Delta = 0.5

	s.Execute(conn, Do(&Assign{Name: "v", Value: V("goal"), Mods: Modifiers{Speed: N(1), Adaptive: true}}))
	rt.Store.Set(rt.Store.Lookup("goal"), Num(3))
	ticks(s, clock, 2)
	if got := num(t, rt, "v"); got != 2 {
		t.Fatal(got)
	}
	rt.Store.Set(rt.Store.Lookup("goal"), Num(0))
	ticks(s, clock, 2)
	if got := num(t, rt, "v"); got != 0 {
		t.Fatal(got)
	}
	if !s.Idle() {
		t.Fatal("adaptive assignment within delta should complete")
	}
}

func TestSinPhase(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")

	s.Execute(conn, Do(&Assign{Name: "v", Value: N(0), Mods: Modifiers{
		Sin:      N(4000),
		Ampli:    N(1),
		GetPhase: "ph",
	}}))
	ticks(s, clock, 2)
	if got := num(t, rt, "v"); got < 0.999 {
		t.Fatal(got)
	}
	if got := num(t, rt, "ph"); got < 1.57 || 1.58 < got {
		t.Fatal(got)
	}
	ticks(s, clock, 10)
	if s.Idle() {
		t.Fatal("sin never completes")
	}
}

func TestConflictingModifiers(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")

	s.Execute(conn, Do(&Assign{Name: "v", Value: N(1), Mods: Modifiers{Time: N(1), Speed: N(1)}}))
	ticks(s, clock, 1)
	if len(conn.errs) != 1 {
		t.Fatal(len(conn.errs))
	}
	var im *InvalidModifier
	if !errors.As(conn.errs[0], &im) {
		t.Fatal(conn.errs[0])
	}
}

func TestDeleteBusy(t *testing.T) {
	s, clock, conn := newTestScheduler()
	rt := s.Runtime()
	declare(rt, "v")

	s.Execute(conn, Do(&Assign{Name: "v", Value: N(10), Mods: Modifiers{Time: N(2000)}}))
	ticks(s, clock, 1)

	err := rt.Store.Delete("v")
	var busy *VariableBusy
	if !errors.As(err, &busy) {
		t.Fatal(err)
	}

	ticks(s, clock, 2)
	if err := rt.Store.Delete("v"); err != nil {
		t.Fatal(err)
	}
	if rt.Store.Lookup("v") != nil {
		t.Fatal("still there")
	}
}

func TestAmbiguousSlots(t *testing.T) {
	rt := NewRuntime(NewManualClock(0), nil)
	for _, o := range []struct {
		name    string
		parents []string
	}{
		{"A", nil},
		{"B", nil},
		{"C", []string{"A", "B"}},
		{"D", []string{"A"}},
		{"E", []string{"A"}},
		{"F", []string{"A"}},
		{"G", []string{"E", "F"}},
	} {
		if _, err := rt.DefineObject(o.name, o.parents...); err != nil {
			t.Fatal(err)
		}
	}
	declare(rt, "A.s", "B.s")

	_, err := rt.ResolveVariable("C.s")
	var amb *AmbiguousName
	if !errors.As(err, &amb) {
		t.Fatal(err)
	}
	if len(amb.Paths) != 2 {
		t.Fatal(amb.Paths)
	}

	if v, err := rt.ResolveVariable("D.s"); err != nil || v != rt.Store.Lookup("A.s") {
		t.Fatal(err)
	}

	if v, err := rt.ResolveVariable("G.s"); err != nil || v != rt.Store.Lookup("A.s") {
		t.Fatal("one variable reached by two paths isn't ambiguous")
	}

	_, err = rt.ResolveVariable("C.nope")
	var undef *UndefinedIdentifier
	if !errors.As(err, &undef) {
		t.Fatal(err)
	}
}

func TestDerivative(t *testing.T) {
	rt := NewRuntime(NewManualClock(time.Second), nil)
	v := rt.Store.Declare("x", Num(1))
	rt.Store.BeginTick()
	rt.Store.Set(v, Num(3))
	got, err := (&Deriv{Name: "x"}).Eval(rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(Num(2)) {
		t.Fatal(got)
	}
	if v.Derivative(0) != 0 {
		t.Fatal("no period, no derivative")
	}
}

func TestStoreHooks(t *testing.T) {
	rt := NewRuntime(NewManualClock(0), nil)
	var reads, writes int
	rt.Store.OnAccess = func(v *Variable) { reads++ }
	rt.Store.OnWrite = func(v *Variable, x Value) { writes++ }

	v := rt.Store.Declare("x", Num(1))
	if _, err := V("x").Eval(rt, nil); err != nil {
		t.Fatal(err)
	}
	rt.Store.Set(v, Num(2))
	if reads != 1 || writes != 2 {
		t.Fatal(reads, writes)
	}
}
