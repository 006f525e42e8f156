package crowdsafe_test

import (
	"testing"
	"time"

	Cs "github.com/maroda/crowdsafe/server"
)

func TestFPSMeter(t *testing.T) {
	m := Cs.NewFPSMeter()
	start := time.Unix(1700000000, 0)

	// 25 frames 40ms apart, the window closes on the 26th
	var got float64
	for i := 0; i <= 25; i++ {
		got = m.Tick(start.Add(time.Duration(i) * 40 * time.Millisecond))
	}
	assertFloat(t, got, 26)

	t.Run("Holds the rate until the next window closes", func(t *testing.T) {
		got := m.Tick(start.Add(1100 * time.Millisecond))
		assertFloat(t, got, 26)
		assertFloat(t, m.FPS(), 26)
	})
}
