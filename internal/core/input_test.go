package core

import "testing"

func TestParseActionRoundTrip(t *testing.T) {
	for a := ActionNone; a <= ActionQuit; a++ {
		if got := ParseAction(a.String()); got != a {
			t.Errorf("ParseAction(%q) = %v, expected %v", a.String(), got, a)
		}
	}
	if ParseAction("Fly") != ActionNone {
		t.Error("unknown names should map to ActionNone")
	}
}

func TestInputFrame(t *testing.T) {
	f := NewInputFrame()
	if !f.Empty() {
		t.Fatal("new frame should be empty")
	}
	f.Set(ActionJump)
	if !f.Has(ActionJump) || f.Has(ActionSlide) {
		t.Error("Has mismatch")
	}
	c := f.Clone()
	f.Clear()
	if !c.Has(ActionJump) {
		t.Error("clone should not be affected by Clear")
	}
	if !f.Empty() {
		t.Error("frame should be empty after Clear")
	}
}
