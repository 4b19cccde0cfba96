package listening

import "testing"

func TestDefaultState(t *testing.T) {
	r := NewRegistry()
	st := r.Get("c1")
	if st.Mode != ModeSmart {
		t.Errorf("default mode = %q, want smart-listening", st.Mode)
	}
	if st.Threshold != 0.6 {
		t.Errorf("default threshold = %v, want 0.6", st.Threshold)
	}
}

func TestSetAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Set("c1", "always-listen", 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if st := r.Get("c1"); st.Mode != ModeAlwaysListen {
		t.Errorf("mode = %q, want always-listen", st.Mode)
	}
	// Other channels unaffected.
	if st := r.Get("c2"); st.Mode != ModeSmart {
		t.Errorf("c2 mode = %q, want smart-listening", st.Mode)
	}
}

func TestSetInvalidLeavesStateUnchanged(t *testing.T) {
	r := NewRegistry()
	if err := r.Set("c1", "disabled", 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	if err := r.Set("c1", "shouting", 0); err == nil {
		t.Error("expected error for unknown mode")
	}
	if err := r.Set("c1", "smart-listening", 1.5); err == nil {
		t.Error("expected error for threshold out of range")
	}
	if st := r.Get("c1"); st.Mode != ModeDisabled {
		t.Errorf("mode = %q, want disabled after failed transitions", st.Mode)
	}
}

func TestSmartThresholdDefaulted(t *testing.T) {
	r := NewRegistry()
	if err := r.Set("c1", "smart-listening", 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if st := r.Get("c1"); st.Threshold != DefaultThreshold {
		t.Errorf("threshold = %v, want %v", st.Threshold, DefaultThreshold)
	}

	if err := r.Set("c1", "smart-listening", 0.8); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if st := r.Get("c1"); st.Threshold != 0.8 {
		t.Errorf("threshold = %v, want 0.8", st.Threshold)
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		mode     string
		eligible bool
	}{
		{"disabled", false},
		{"mentions-only", false},
		{"always-listen", true},
		{"smart-listening", true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Set("c1", tt.mode, 0.5); err != nil {
				t.Fatalf("Set error: %v", err)
			}
			if got := r.Eligible("c1"); got != tt.eligible {
				t.Errorf("Eligible(%s) = %v, want %v", tt.mode, got, tt.eligible)
			}
		})
	}
}
