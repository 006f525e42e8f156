//go:build nomidi

package plugin

import (
	"fmt"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
)

type MIDIOutput struct{}

func NewMIDIOutput(port int) (*MIDIOutput, error) {
	return nil, fmt.Errorf("MIDI support not compiled in this build")
}

func SeverityNote(s Ct.Severity) (uint8, uint8) { return 0, 0 }

func (m *MIDIOutput) WriteAlert(alert *Ct.AlertRecord) error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (m *MIDIOutput) WriteRecord(rec *Ct.FrameRecord) error    { return nil }
func (m *MIDIOutput) WriteBatch(recs []*Ct.FrameRecord) error { return nil }

func (m *MIDIOutput) QueryRange(start, end time.Time) ([]*Ct.FrameRecord, error) {
	return nil, ErrNoQuery
}

func (m *MIDIOutput) Flush() error { return nil }
func (m *MIDIOutput) Close() error { return nil }
func (m *MIDIOutput) Type() string { return "midi-disabled" }
