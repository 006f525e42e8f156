package crowdsafe_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	Cs "github.com/maroda/crowdsafe/server"
)

func TestHistorySeries(t *testing.T) {
	t.Run("Empty series returns its initial value", func(t *testing.T) {
		h := Cs.NewHistorySeries(5, -1.0)
		assertFloat(t, h.Latest(), -1.0)
		assertInt(t, h.Len(), 0)
		assertInt(t, len(h.Snapshot()), 0)
	})

	t.Run("Keeps insertion order below capacity", func(t *testing.T) {
		h := Cs.NewHistorySeries(5, 0)
		for _, v := range []int{1, 2, 3} {
			h.Push(v)
		}
		if diff := cmp.Diff([]int{1, 2, 3}, h.Snapshot()); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
		assertInt(t, h.Latest(), 3)
	})

	t.Run("Evicts the oldest at capacity", func(t *testing.T) {
		h := Cs.NewHistorySeries(150, 0)
		for i := 0; i < 151; i++ {
			h.Push(i)
		}
		snap := h.Snapshot()
		assertInt(t, h.Len(), 150)
		assertInt(t, h.Cap(), 150)
		assertInt(t, snap[0], 1)
		assertInt(t, snap[149], 150)
		assertInt(t, h.Latest(), 150)
	})

	t.Run("Wraps many times", func(t *testing.T) {
		h := Cs.NewHistorySeries(3, "")
		for _, s := range []string{"a", "b", "c", "d", "e", "f", "g"} {
			h.Push(s)
		}
		if diff := cmp.Diff([]string{"e", "f", "g"}, h.Snapshot()); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Snapshot is a copy", func(t *testing.T) {
		h := Cs.NewHistorySeries(3, 0)
		h.Push(1)
		snap := h.Snapshot()
		snap[0] = 99
		assertInt(t, h.Latest(), 1)
	})

	t.Run("Capacity below one panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		Cs.NewHistorySeries(0, 0)
	})
}
