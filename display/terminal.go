package crowdsafe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Co "github.com/maroda/crowdsafe/obvy"
	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
)

const (
	screenGutter = 2
	gaugeWidth   = 24
	panelGap     = 3
)

// View is the operator dashboard.
// The pipeline goroutine pushes snapshots through Render,
// the keyboard goroutine only reads.
type View struct {
	MU     sync.Mutex         // State locks to draw
	Orch   *Cs.Orchestrator   // Pipeline being watched
	Screen tcell.Screen       // the screen itself, nil when headless
	Stats  *Co.StatsInternal  // Internal status for prometheus
	server *http.Server       // metrics, api and websocket
	cancel context.CancelFunc // stops the pipeline
	last   Cs.Snapshot        // most recent snapshot drawn
	panels PanelSet           // artifacts from the render cache
	width  int                // chart width the panels were built for
}

// NewView needs a running pipeline, the screen is optional
func NewView(o *Cs.Orchestrator, screen tcell.Screen) (*View, error) {
	if o == nil || o.Dashboard == nil {
		slog.Error("Could not get a pipeline for display")
		return nil, errors.New("pipeline not found")
	}

	if screen != nil {
		defStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
		screen.SetStyle(defStyle)
	}

	return &View{
		Orch:   o,
		Screen: screen,
		Stats:  o.Stats,
		cancel: func() {},
	}, nil
}

// Render draws one snapshot, panels come from the render cache
func (v *View) Render(snap Cs.Snapshot) error {
	v.MU.Lock()
	defer v.MU.Unlock()

	v.last = snap
	if v.Screen == nil {
		return nil
	}

	width, _ := v.GetScreenSize()
	cw := chartWidth(width)
	if cw != v.width {
		for _, name := range []string{Cs.ArtifactDensityChart, Cs.ArtifactRiskChart, Cs.ArtifactMotionChart} {
			v.Orch.Dashboard.Cache.Invalidate(name)
		}
		v.width = cw
	}

	ps, err := BuildPanels(v.Orch.Dashboard.Cache, snap, cw)
	v.panels = ps

	v.Screen.Clear()
	v.drawDashboard(snap)
	v.Screen.Show()

	return err
}

// Last is the most recent snapshot handed to Render
func (v *View) Last() Cs.Snapshot {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.last
}

func chartWidth(screenWidth int) int {
	return max(screenWidth-2*screenGutter-2, 1)
}

// GetScreenSize provides the terminal size for drawing
func (v *View) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// StatusColor matches the status indicator thresholds
func StatusColor(level float64) tcell.Color {
	switch Cs.Status(level) {
	case "SAFE":
		return tcell.ColorMediumSeaGreen
	case "CAUTION":
		return tcell.ColorOrange
	default:
		return tcell.ColorRed
	}
}

// LevelStyle colors a normalized value like the status indicator
func LevelStyle(level float64) tcell.Style {
	return tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(StatusColor(level))
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	v.DrawStyledText(x1, y1, x2, y2, text,
		tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue))
}

func (v *View) DrawStyledText(x1, y1, x2, y2 int, text string, style tcell.Style) {
	row := y1
	col := x1
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawSparkline colors each glyph by its height
func (v *View) DrawSparkline(x, y int, line string) {
	i := 0
	for _, r := range line {
		var style tcell.Style
		switch r {
		case '▁':
			style = tcell.StyleDefault.Foreground(tcell.ColorSeaGreen)
		case '▂':
			style = tcell.StyleDefault.Foreground(tcell.ColorMediumSeaGreen)
		case '▃':
			style = tcell.StyleDefault.Foreground(tcell.ColorLightSeaGreen)
		case '▄':
			style = tcell.StyleDefault.Foreground(tcell.ColorYellowGreen)
		case '▅':
			style = tcell.StyleDefault.Foreground(tcell.ColorGold)
		case '▆':
			style = tcell.StyleDefault.Foreground(tcell.ColorOrange)
		case '▇':
			style = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
		case '█':
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
		default:
			style = tcell.StyleDefault
		}
		v.Screen.SetContent(x+i, y, r, nil, style)
		i++
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorSteelBlue)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)
	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
}

// drawPanel puts the title on row y and the lines below it,
// returns the next free row
func (v *View) drawPanel(x, y, x2 int, p Ct.Panel, style tcell.Style) int {
	title := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorAqua).Bold(true)
	v.DrawStyledText(x, y, x2, y, p.Title, title)
	for i, line := range p.Lines {
		v.DrawStyledText(x, y+1+i, x2, y+1+i, line, style)
	}
	return y + 1 + len(p.Lines)
}

// drawDashboard lays out every panel, caller holds the lock
func (v *View) drawDashboard(snap Cs.Snapshot) {
	width, height := v.GetScreenSize()
	v.DrawViewBorder(width-1, height-1)

	x := screenGutter
	right := width - screenGutter

	// header: title on the left, status on the right
	v.DrawStyledText(x, 1, right, 1, "CROWD SAFETY MONITORING",
		tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite).Bold(true))
	status := fmt.Sprintf("STATUS: %s", snap.Status)
	if snap.Paused {
		status = "PAUSED | " + status
	}
	v.DrawStyledText(right-len(status), 1, right, 1, status, LevelStyle(snap.CurrentRisk))
	rawMotion := 0.0
	if n := len(snap.MotionRaw); n > 0 {
		rawMotion = snap.MotionRaw[n-1]
	}
	v.DrawText(x, 2, right, 2, fmt.Sprintf("%s | fps %.1f | density %.2f | risk %.2f | motion %.1fpx (%.2f)",
		snap.State, snap.CurrentFPS, snap.CurrentDensity, snap.CurrentRisk, rawMotion, snap.CurrentMotion))
	WriteBar(v.Screen, x, 3, right, 4, tcell.StyleDefault.Background(StatusColor(snap.CurrentRisk)))

	row := 5
	for _, p := range []Ct.Panel{v.panels.DensityChart, v.panels.RiskChart, v.panels.MotionChart} {
		v.DrawStyledText(x, row, right, row, p.Title,
			tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorAqua).Bold(true))
		if len(p.Lines) > 0 {
			v.DrawSparkline(x, row+1, p.Lines[0])
		}
		row += panelGap
	}

	// gauges side by side
	half := x + (right-x)/2
	v.drawPanel(x, row, half, v.panels.RiskGauge, LevelStyle(v.panels.RiskGauge.Level))
	v.drawPanel(half, row, right, v.panels.DensityGauge, LevelStyle(v.panels.DensityGauge.Level))
	row += 2

	// statistics on the left, alerts and legend on the right
	v.drawPanel(x, row, half, v.panels.Stats,
		tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue))
	next := v.drawPanel(half, row, right, v.panels.Alerts, LevelStyle(v.panels.Alerts.Level))
	v.drawPanel(half, next+1, right, v.panels.Legend,
		tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue))

	v.DrawText(1, height-1, width, height+10, "/p/ pause | /q/ quit")
	v.DrawText(width-12, height-1, width, height+10, "CROWDSAFE")
}

// redraw refreshes the screen outside the pipeline loop,
// used after resize and pause where no new frame is coming
func (v *View) redraw() {
	if err := v.Render(v.Orch.Dashboard.Snapshot()); err != nil {
		slog.Error("Redraw failed", slog.Any("Error", err))
	}
}

// Running Loop to handle events, returns when the screen is finalized
func (v *View) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			v.Screen.Sync()
			v.redraw()
		case *tcell.EventKey:
			if v.HandleKey(ev) {
				return
			}
		}
	}
}

// HandleKey reacts to one key, returns true when the view should stop
func (v *View) HandleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
		slog.Info("Quit requested from keyboard")
		v.cancel()
		return true
	}

	if ev.Rune() == 'p' {
		v.Orch.TogglePause()
		v.redraw()
	}
	return false
}

// exit restores the terminal and stops the web server
func (v *View) exit() {
	v.MU.Lock()
	if v.Screen != nil {
		v.Screen.Fini()
	}
	v.MU.Unlock()

	if v.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := v.server.Shutdown(ctx); err != nil {
			slog.Error("Could not stop web server", slog.Any("Error", err))
		}
	}
}

// StartTUI is called by main to run the pipeline with the terminal dashboard.
// This also starts up the /metrics and api endpoints.
// It returns when the source drains, the pipeline fails, or the operator quits.
func StartTUI(ctx context.Context, o *Cs.Orchestrator, c *Cs.Config) error {
	screen, err := GetTTY()
	if err != nil {
		slog.Error("Could not start terminal", slog.Any("Error", err))
		return err
	}

	view, err := NewView(o, screen)
	if err != nil {
		screen.Fini()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	view.cancel = cancel

	o.AddRenderer(view)
	view.serve(c.StatsAddr)

	sup := NewPipelineSupervisor(o)
	sup.Start(ctx)

	go view.handleKeyBoardEvent()

	err = sup.Wait()
	view.exit()
	return err
}
