package crowdsafe

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
	xdraw "golang.org/x/image/draw"
)

var (
	ErrBadFrame   = errors.New("bad frame")
	ErrNoSource   = errors.New("no frame source configured")
	ErrSourceOpen = errors.New("could not open frame source")
)

// FrameSource yields preprocessed grayscale frames.
// Read returns io.EOF at the end of the stream. An error wrapping
// ErrBadFrame skips one frame, anything else ends the run.
type FrameSource interface {
	Read(ctx context.Context) (*Ct.Frame, error)
	FPS() float64
	Close() error
}

// openVideo is replaced when built with the gocv tag
var openVideo = func(path string, c *Config) (FrameSource, error) {
	return nil, fmt.Errorf("%w: %s: video files need a build with -tags gocv", ErrSourceOpen, path)
}

// NewSource picks a source by the shape of c.Source:
// http(s) URLs are camera snapshots, directories are image sequences,
// anything else is handed to the video decoder.
func NewSource(c *Config) (FrameSource, error) {
	src := c.Source
	switch {
	case src == "" || src == "ENOENT":
		return nil, ErrNoSource
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		return NewSnapshotSource(src, c, sharedHTTPClient)
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	if info.IsDir() {
		return NewDirSource(src, c)
	}
	return openVideo(src, c)
}

// ToFrame converts any image to a grayscale Frame,
// scaled to width x height when both are positive
func ToFrame(img image.Image, seq uint64, width, height int) *Ct.Frame {
	b := img.Bounds()
	if width <= 0 || height <= 0 {
		width, height = b.Dx(), b.Dy()
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	if b.Dx() == width && b.Dy() == height {
		xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, xdraw.Src, nil)
	}

	pix := gray.Pix
	if gray.Stride != width {
		pix = make([]uint8, width*height)
		for y := 0; y < height; y++ {
			copy(pix[y*width:(y+1)*width], gray.Pix[y*gray.Stride:y*gray.Stride+width])
		}
	}

	return &Ct.Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Pix:       pix,
	}
}

// SliceSource replays frames held in memory
type SliceSource struct {
	Frames []*Ct.Frame
	Rate   float64
	next   int
}

func NewSliceSource(frames []*Ct.Frame, fps float64) *SliceSource {
	return &SliceSource{Frames: frames, Rate: fps}
}

func (ss *SliceSource) Read(ctx context.Context) (*Ct.Frame, error) {
	if ss.next >= len(ss.Frames) {
		return nil, io.EOF
	}
	f := ss.Frames[ss.next]
	ss.next++
	return f, nil
}

func (ss *SliceSource) FPS() float64 { return ss.Rate }
func (ss *SliceSource) Close() error { return nil }

// DirSource reads an ordered directory of still images as a stream
type DirSource struct {
	Dir    string
	Files  []string
	Skip   int
	Width  int
	Height int
	Rate   float64
	next   int
	seq    uint64
}

var imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

func NewDirSource(dir string, c *Config) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrSourceOpen, dir)
	}
	sort.Strings(files)

	skip := c.FrameSkip
	if skip < 1 {
		skip = 1
	}

	slog.Info("Opened image directory",
		slog.String("dir", dir),
		slog.Int("images", len(files)),
		slog.Int("skip", skip))

	return &DirSource{
		Dir:    dir,
		Files:  files,
		Skip:   skip,
		Width:  c.FrameWidth,
		Height: c.FrameHeight,
		Rate:   c.SourceFPS,
	}, nil
}

// Read decodes every Skip-th file, a file that fails to decode is a bad frame
func (ds *DirSource) Read(ctx context.Context) (*Ct.Frame, error) {
	if ds.next >= len(ds.Files) {
		return nil, io.EOF
	}
	name := ds.Files[ds.next]
	ds.next += ds.Skip
	ds.seq++

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadFrame, filepath.Base(name), err)
	}
	return ToFrame(img, ds.seq, ds.Width, ds.Height), nil
}

func (ds *DirSource) FPS() float64 { return ds.Rate }
func (ds *DirSource) Close() error { return nil }
