package plugin

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Ct "github.com/maroda/crowdsafe/types"
)

const (
	recordPrefix byte = 'f'
	alertPrefix  byte = 'a'
)

type BadgerOutput struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Ct.FrameRecord
}

func NewBadgerOutput(path string, batchSize int) (*BadgerOutput, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerOutput failed to open database", slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerOutput opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Ct.FrameRecord, 0, batchSize),
	}, nil
}

// WriteRecord queues up a batch of frame records,
// when batchsize is reached, it calls flushLocked()
// which calls WriteBatch() with the new batch
func (bo *BadgerOutput) WriteRecord(rec *Ct.FrameRecord) error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	bo.Buffer = append(bo.Buffer, rec)
	if len(bo.Buffer) >= bo.BatchSize {
		return bo.flushLocked()
	}
	return nil
}

// WriteBatch performs the key/value creation to be stored
// and actually calls BadgerDB to write the data
func (bo *BadgerOutput) WriteBatch(recs []*Ct.FrameRecord) error {
	wb := bo.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range recs {
		v, err := gobEncode(r)
		if err != nil {
			return fmt.Errorf("record encode error: %w", err)
		}
		if err := wb.Set(RecordKey(r), v); err != nil {
			slog.Error("BadgerOutput failed to set key in batch",
				slog.Any("error", err),
				slog.Time("captured", r.Captured),
				slog.Uint64("seq", r.Seq))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerOutput failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

// WriteAlert is not buffered, alerts are rare and should survive a crash
func (bo *BadgerOutput) WriteAlert(alert *Ct.AlertRecord) error {
	v, err := gobEncode(alert)
	if err != nil {
		return fmt.Errorf("alert encode error: %w", err)
	}
	return bo.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(AlertKey(alert, time.Now()), v)
	})
}

// Flush is the public method that blocks,
// it sends data to WriteBatch and then clears the buffer
func (bo *BadgerOutput) Flush() error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	if len(bo.Buffer) == 0 {
		return nil
	}
	return bo.flushLocked()
}

// flushLocked mimics Flush without locking, called by WriteRecord
func (bo *BadgerOutput) flushLocked() error {
	err := bo.WriteBatch(bo.Buffer)
	bo.Buffer = bo.Buffer[:0] // Clear but keep capacity
	return err
}

// Close returns a Flush error but still attempts to close
func (bo *BadgerOutput) Close() error {
	slog.Info("BadgerOutput closing, flushing buffer",
		slog.Int("bufferSize", len(bo.Buffer)))
	flushErr := bo.Flush()
	closeErr := bo.DB.Close()

	if flushErr != nil {
		slog.Error("BadgerOutput failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %v", flushErr)
	}

	if closeErr != nil {
		slog.Error("BadgerOutput failed to close database", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %v", closeErr)
	}

	slog.Info("BadgerOutput closed successfully")
	return nil
}

func (bo *BadgerOutput) Type() string { return "BadgerDB" }

// RecordKey creates a composite key
// prefix + capture timestamp + sequence number
func RecordKey(rec *Ct.FrameRecord) []byte {
	key := make([]byte, 1+8+8)
	key[0] = recordPrefix

	// Using positive BigEndian integer to convert timestamp
	// so keys can be sorted chronologically by BadgerDB
	binary.BigEndian.PutUint64(key[1:9], uint64(rec.Captured.UnixNano()))
	binary.BigEndian.PutUint64(key[9:17], rec.Seq)

	return key
}

// AlertKey creates a composite key
// prefix + write timestamp + first five letters of kind
func AlertKey(alert *Ct.AlertRecord, at time.Time) []byte {
	key := make([]byte, 1+8+5)
	key[0] = alertPrefix
	binary.BigEndian.PutUint64(key[1:9], uint64(at.UnixNano()))

	kBytes := []byte(alert.Kind)
	n := len(kBytes)
	if n > 5 {
		n = 5
	}
	copy(key[9:9+n], kBytes[:n])

	return key
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RecordDecode deserializes the frame record data
func RecordDecode(data []byte) (*Ct.FrameRecord, error) {
	var r Ct.FrameRecord
	err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&r)
	return &r, err
}

// AlertDecode deserializes the alert data
func AlertDecode(data []byte) (*Ct.AlertRecord, error) {
	var a Ct.AlertRecord
	err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&a)
	return &a, err
}

// QueryRange retrieves frame records captured strictly between start and end
func (bo *BadgerOutput) QueryRange(start, end time.Time) ([]*Ct.FrameRecord, error) {
	var recs []*Ct.FrameRecord

	seek := make([]byte, 9)
	seek[0] = recordPrefix
	binary.BigEndian.PutUint64(seek[1:9], uint64(start.UnixNano()))

	// db.View() callback
	// BadgerDB provides a transaction in which to get item.Value()
	err := bo.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{recordPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()

			var rec *Ct.FrameRecord
			err := item.Value(func(val []byte) error {
				var err error
				rec, err = RecordDecode(val)
				if err != nil {
					slog.Error("BadgerOutput failed to decode record", slog.Any("error", err))
					return fmt.Errorf("record decode error: %w", err)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("item data error: %w", err)
			}

			// keys are time ordered, nothing later can match
			if !rec.Captured.Before(end) {
				break
			}
			if rec.Captured.After(start) {
				recs = append(recs, rec)
			}
		}
		return nil
	})

	slog.Debug("BadgerOutput QueryRange", slog.Int("count", len(recs)))

	return recs, err
}

// Alerts returns every stored alert in write order
func (bo *BadgerOutput) Alerts() ([]*Ct.AlertRecord, error) {
	var alerts []*Ct.AlertRecord
	err := bo.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{alertPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				a, err := AlertDecode(val)
				if err != nil {
					return err
				}
				alerts = append(alerts, a)
				return nil
			})
			if err != nil {
				return fmt.Errorf("alert data error: %w", err)
			}
		}
		return nil
	})
	return alerts, err
}
