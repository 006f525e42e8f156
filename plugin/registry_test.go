package plugin_test

import (
	"path/filepath"
	"testing"
	"time"

	Cp "github.com/maroda/crowdsafe/plugin"
)

func TestKernelLookup(t *testing.T) {
	t.Run("Returns known density kernel", func(t *testing.T) {
		got, err := Cp.DensityKernelLookup("grid_mean")
		assertError(t, err, nil)
		assertStringContains(t, got.Type(), "grid_mean")
	})

	t.Run("Returns known motion kernel", func(t *testing.T) {
		got, err := Cp.MotionKernelLookup("block_match")
		assertError(t, err, nil)
		assertStringContains(t, got.Type(), "block_match")
	})

	t.Run("Returns error if kernels don't exist", func(t *testing.T) {
		_, err := Cp.DensityKernelLookup("craquemattic")
		assertGotError(t, err)
		_, err = Cp.MotionKernelLookup("craquemattic")
		assertGotError(t, err)
	})
}

func TestOutputLookup(t *testing.T) {
	t.Run("Builds a sqlite output", func(t *testing.T) {
		got, err := Cp.OutputLookup(Cp.OutputConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "o.db")})
		assertError(t, err, nil)
		defer got.Close()
		assertStringContains(t, got.Type(), "SQLite")
	})

	t.Run("Builds a badger output with default batch", func(t *testing.T) {
		got, err := Cp.OutputLookup(Cp.OutputConfig{Type: "badger", Path: t.TempDir()})
		assertError(t, err, nil)
		defer got.Close()
		bo, ok := got.(*Cp.BadgerOutput)
		if !ok {
			t.Fatalf("expected *BadgerOutput, got %T", got)
		}
		assertInt(t, bo.BatchSize, 30)
	})

	t.Run("Failed output is a nil interface", func(t *testing.T) {
		got, err := Cp.OutputLookup(Cp.OutputConfig{Type: "redis", Addr: "127.0.0.1:1"})
		assertGotError(t, err)
		if got != nil {
			t.Errorf("expected nil adapter, got %T", got)
		}
	})

	t.Run("Unknown output is an error", func(t *testing.T) {
		_, err := Cp.OutputLookup(Cp.OutputConfig{Type: "carrier_pigeon"})
		assertGotError(t, err)
	})
}

func testTime() time.Time { return time.Unix(1700000000, 0) }
