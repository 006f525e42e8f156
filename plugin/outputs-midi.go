//go:build !nomidi

package plugin

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// chimeLength is how long an alert note is held
const chimeLength = 600 * time.Millisecond

// MIDIOutput turns alerts into notes so an operator hears them.
// Frame records are ignored.
type MIDIOutput struct {
	Port    drivers.Out
	Send    func(msg midi.Message) error
	Channel uint8
	WG      sync.WaitGroup
}

func NewMIDIOutput(port int) (*MIDIOutput, error) {
	out, err := midi.OutPort(port)
	if err != nil {
		slog.Error("Error opening MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error opening MIDI port: %q", err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		slog.Error("Error sending to MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error sending to MIDI port: %q", err)
	}

	return &MIDIOutput{
		Port: out,
		Send: send,
	}, nil
}

// SeverityNote maps an alert severity to a note and velocity,
// higher severity is higher and louder
func SeverityNote(s Ct.Severity) (uint8, uint8) {
	switch s {
	case Ct.SeverityHigh:
		return 72, 120
	case Ct.SeverityMedium:
		return 67, 90
	default:
		return 60, 60
	}
}

func (mo *MIDIOutput) SendNoteOnMIDI(midic, midin, midiv uint8) error {
	return mo.Send(midi.NoteOn(midic, midin, midiv))
}

func (mo *MIDIOutput) SendNoteOffMIDI(midic, midin uint8) error {
	return mo.Send(midi.NoteOff(midic, midin))
}

func (mo *MIDIOutput) WriteAlert(alert *Ct.AlertRecord) error {
	note, velocity := SeverityNote(alert.Severity)
	channel := mo.Channel

	mo.WG.Add(1)
	go func() {
		defer mo.WG.Done()
		if err := mo.SendNoteOnMIDI(channel, note, velocity); err != nil {
			slog.Error("NoteOn event failed", slog.String("kind", alert.Kind))
		}
		time.Sleep(chimeLength)
		if err := mo.SendNoteOffMIDI(channel, note); err != nil {
			slog.Error("NoteOff event failed, attempting Flush")
			mo.Flush()
		}
	}()

	return nil
}

func (mo *MIDIOutput) WriteRecord(rec *Ct.FrameRecord) error    { return nil }
func (mo *MIDIOutput) WriteBatch(recs []*Ct.FrameRecord) error { return nil }

func (mo *MIDIOutput) QueryRange(start, end time.Time) ([]*Ct.FrameRecord, error) {
	return nil, ErrNoQuery
}

func (mo *MIDIOutput) Flush() error {
	return mo.Send(midi.ControlChange(mo.Channel, midi.AllNotesOff, midi.Off))
}

func (mo *MIDIOutput) Close() error {
	mo.WG.Wait()

	if mo.Port != nil {
		mo.Port.Close()
		midi.CloseDriver()
	}
	return nil
}

func (mo *MIDIOutput) Type() string { return "MIDI" }
