package dashboard

import "testing"

func TestHealth_Transitions(t *testing.T) {
	t.Parallel()

	h := NewHealth(0)
	for i := 1; i < DefaultOfflineAfter; i++ {
		if h.Record(true) {
			t.Fatalf("changed after %d failures", i)
		}
	}
	if !h.Record(true) {
		t.Fatalf("expected offline transition")
	}
	if st := h.Status(); !st.Offline || st.FailedCycles != DefaultOfflineAfter {
		t.Fatalf("status=%+v", st)
	}
	if h.Record(true) {
		t.Fatalf("still offline is not a transition")
	}
	if !h.Record(false) {
		t.Fatalf("expected online transition")
	}
	if st := h.Status(); st.Offline || st.LastOK.IsZero() {
		t.Fatalf("status=%+v", st)
	}

	h.Reset()
	if st := h.Status(); st.FailedCycles != 0 || !st.LastOK.IsZero() {
		t.Fatalf("status after reset=%+v", st)
	}
}
