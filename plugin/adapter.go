package plugin

/*

	The Adapter sits aside /crowdsafe/
	Contains core interfaces for Plugin

*/

import (
	"errors"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/mat"
)

// ErrNoQuery is returned by outputs that cannot be read back
var ErrNoQuery = errors.New("output does not support queries")

// DensityKernel partitions a frame into a rows x cols grid
// and returns the mean intensity of each cell normalized to [0,1].
// Remainder rows/columns that do not fill a whole cell are dropped.
type DensityKernel interface {
	Density(frame *Ct.Frame, rows, cols int) (*mat.Dense, error)
	Type() string
}

// MotionKernel returns the mean displacement magnitude between two frames,
// in pixels per frame. It is not normalized.
type MotionKernel interface {
	Motion(prev, curr *Ct.Frame) (float64, error)
	Type() string
}

// OutputAdapter can be used to define a place for the data to go,
// record-by-record or in batches if supported by the output type.
type OutputAdapter interface {
	WriteRecord(rec *Ct.FrameRecord) error                      // Write singleton frame data
	WriteBatch(recs []*Ct.FrameRecord) error                    // Write batches of frames
	WriteAlert(alert *Ct.AlertRecord) error                     // Write a raised alert
	QueryRange(start, end time.Time) ([]*Ct.FrameRecord, error) // Time range query tool
	Flush() error                                               // Flush any buffered data
	Close() error                                               // Close the adapter and release resources
	Type() string                                               // ID for output
}
