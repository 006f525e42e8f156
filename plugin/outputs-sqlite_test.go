package plugin_test

import (
	"path/filepath"
	"testing"
	"time"

	Cp "github.com/maroda/crowdsafe/plugin"
	Ct "github.com/maroda/crowdsafe/types"
)

func TestSQLiteOutput(t *testing.T) {
	adapter, err := Cp.NewSQLiteOutput(filepath.Join(t.TempDir(), "crowdsafe.db"))
	assertError(t, err, nil)
	defer adapter.Close()

	start := time.Unix(1700000000, 0)

	t.Run("Writes single records", func(t *testing.T) {
		assertError(t, adapter.WriteRecord(makeRecord(0, start)), nil)
	})

	t.Run("Writes batches", func(t *testing.T) {
		recs := []*Ct.FrameRecord{
			makeRecord(1, start.Add(1*time.Second)),
			makeRecord(2, start.Add(2*time.Second)),
			makeRecord(3, start.Add(3*time.Second)),
		}
		assertError(t, adapter.WriteBatch(recs), nil)
	})

	t.Run("QueryRange bounds are exclusive", func(t *testing.T) {
		got, err := adapter.QueryRange(start, start.Add(3*time.Second))
		assertError(t, err, nil)
		assertInt(t, len(got), 2)
		assertInt(t, int(got[0].Seq), 1)
		assertStringContains(t, got[0].RunID, "test-run")
		if got[0].Band != Ct.RiskMedium {
			t.Errorf("band not restored, got %v", got[0].Band)
		}
	})

	t.Run("Stores alerts", func(t *testing.T) {
		err := adapter.WriteAlert(&Ct.AlertRecord{ID: "x1", Kind: "anomaly", Severity: Ct.SeverityHigh, Message: "Anomalous behavior detected", RaisedAt: 1})
		assertError(t, err, nil)
		n, err := adapter.AlertCount()
		assertError(t, err, nil)
		assertInt(t, n, 1)
	})

	t.Run("Returns Type", func(t *testing.T) {
		assertStringContains(t, adapter.Type(), "SQLite")
	})
}
