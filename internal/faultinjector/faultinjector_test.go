package faultinjector

import "testing"

func TestChooseValueHonestWhenLieModeOff(t *testing.T) {
	f := New(SentinelValue)
	for i := 0; i < 50; i++ {
		if got := f.ChooseValue("truth"); got != "truth" {
			t.Fatalf("expected honest value, got %q", got)
		}
	}
}

func TestChooseValueAlwaysLiesAtRateOne(t *testing.T) {
	f := New(SentinelValue)
	f.SetLying(true, 1.0)

	if got := f.ChooseValue("truth"); got != sentinelFaultValue {
		t.Fatalf("expected sentinel fault value, got %q", got)
	}
}

func TestSetLyingClampsRate(t *testing.T) {
	f := New(SentinelValue)
	f.SetLying(true, 5.0)
	if f.LieRate != 1.0 {
		t.Errorf("expected rate clamped to 1.0, got %v", f.LieRate)
	}

	f.SetLying(true, -5.0)
	if f.LieRate != 0.0 {
		t.Errorf("expected rate clamped to 0.0, got %v", f.LieRate)
	}
}

func TestRandomSetModeReturnsOneOfFive(t *testing.T) {
	f := New(RandomSet)
	f.SetLying(true, 1.0)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got := f.ChooseValue("truth")
		found := false
		for _, v := range equivocationSet {
			if v == got {
				found = true
			}
		}
		if !found {
			t.Fatalf("value %q not in equivocation set", got)
		}
		seen[got] = true
	}
}
