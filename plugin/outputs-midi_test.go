//go:build !nomidi

package plugin_test

import (
	"testing"

	Cp "github.com/maroda/crowdsafe/plugin"
	Ct "github.com/maroda/crowdsafe/types"
)

func TestSeverityNote(t *testing.T) {
	low, _ := Cp.SeverityNote(Ct.SeverityLow)
	med, _ := Cp.SeverityNote(Ct.SeverityMedium)
	high, vel := Cp.SeverityNote(Ct.SeverityHigh)
	if !(low < med && med < high) {
		t.Errorf("notes should rise with severity, got %d %d %d", low, med, high)
	}
	assertInt(t, int(vel), 120)
}

func TestMIDIOutput_WriteAlert(t *testing.T) {
	adapter, err := Cp.NewMIDIOutput(0)
	if err != nil {
		t.Skipf("no MIDI port available: %v", err)
	}
	defer adapter.Close()

	t.Run("Plays one chime for an alert", func(t *testing.T) {
		err := adapter.WriteAlert(&Ct.AlertRecord{Kind: "critical_risk", Severity: Ct.SeverityHigh})
		assertError(t, err, nil)
	})

	t.Run("Does not support queries", func(t *testing.T) {
		_, err := adapter.QueryRange(testTime(), testTime())
		assertError(t, err, Cp.ErrNoQuery)
	})
}
