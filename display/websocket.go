package crowdsafe

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
)

const (
	wsInterval     = 100 * time.Millisecond
	wsWriteTimeout = 2 * time.Second
)

// LiveUpdate is the compact state pushed to browsers
type LiveUpdate struct {
	Frame       int              `json:"frame"`
	Elapsed     float64          `json:"elapsed"`
	Status      string           `json:"status"`
	State       string           `json:"state"`
	Paused      bool             `json:"paused"`
	Density     float64          `json:"density"`
	Risk        float64          `json:"risk"`
	Motion      float64          `json:"motion"`
	FPS         float64          `json:"fps"`
	Anomaly     bool             `json:"anomaly"`
	HighRiskPct float64          `json:"highRiskPct"`
	Active      []Ct.AlertRecord `json:"active"`
}

func NewLiveUpdate(snap Cs.Snapshot) LiveUpdate {
	anomaly := false
	if n := len(snap.Anomaly); n > 0 {
		anomaly = snap.Anomaly[n-1]
	}
	active := snap.Active
	if active == nil {
		active = []Ct.AlertRecord{}
	}
	return LiveUpdate{
		Frame:       snap.FrameCount,
		Elapsed:     Cs.FloatPrecise(snap.Elapsed, 2),
		Status:      snap.Status,
		State:       snap.State,
		Paused:      snap.Paused,
		Density:     snap.CurrentDensity,
		Risk:        snap.CurrentRisk,
		Motion:      snap.CurrentMotion,
		FPS:         snap.CurrentFPS,
		Anomaly:     anomaly,
		HighRiskPct: Cs.FloatPrecise(snap.HighRiskPct, 1),
		Active:      active,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler pushes a LiveUpdate whenever the dashboard moves
func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// reads only notice the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsInterval)
	defer ticker.Stop()

	lastFrame, lastPaused := -1, false
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap := v.Orch.Dashboard.Snapshot()
			if snap.FrameCount == lastFrame && snap.Paused == lastPaused {
				continue
			}
			lastFrame, lastPaused = snap.FrameCount, snap.Paused

			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(NewLiveUpdate(snap)); err != nil {
				slog.Debug("Websocket closed", slog.Any("Error", err))
				return
			}
		}
	}
}
