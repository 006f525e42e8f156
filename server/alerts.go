package crowdsafe

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	Ct "github.com/maroda/crowdsafe/types"
)

// Alert kinds
const (
	KindCritical = "CRITICAL RISK"
	KindHighRisk = "High Risk"
	KindModerate = "Moderate Risk"
	KindDensity  = "High Density"
	KindMotion   = "High Motion"
	KindAnomaly  = "Anomaly Detected"
)

// Observation is what the alert rules look at for one frame.
// Motion is raw pixels per frame.
type Observation struct {
	Risk         float64
	Density      float64
	Motion       float64
	AnomalyScore float64
}

// AlertManager owns the active and recent alert lists.
// active is pruned by age, recent is a ring that only ages out by count.
type AlertManager struct {
	MU     sync.RWMutex
	Clock  func() float64
	active []Ct.AlertRecord
	recent *HistorySeries[Ct.AlertRecord]
}

// NewAlertManager takes the pipeline clock, seconds since start
func NewAlertManager(recentCap int, clock func() float64) *AlertManager {
	return &AlertManager{
		Clock:  clock,
		recent: NewHistorySeries(recentCap, Ct.AlertRecord{}),
	}
}

func (am *AlertManager) Raise(kind string, severity Ct.Severity, message string) Ct.AlertRecord {
	a := Ct.AlertRecord{
		ID:       uuid.NewString(),
		Kind:     kind,
		Severity: severity,
		Message:  message,
		RaisedAt: am.Clock(),
	}

	am.MU.Lock()
	defer am.MU.Unlock()
	am.active = append(am.active, a)
	am.recent.Push(a)
	return a
}

// Prune drops active alerts at least maxAge old and returns how many went.
// Calling it twice at the same time changes nothing the second time.
func (am *AlertManager) Prune(maxAge float64) int {
	now := am.Clock()

	am.MU.Lock()
	defer am.MU.Unlock()

	kept := am.active[:0]
	for _, a := range am.active {
		if now-a.RaisedAt < maxAge {
			kept = append(kept, a)
		}
	}
	removed := len(am.active) - len(kept)
	// clear the tail so pruned records are not held by the backing array
	for i := len(kept); i < len(am.active); i++ {
		am.active[i] = Ct.AlertRecord{}
	}
	am.active = kept
	return removed
}

// Evaluate runs the rules in priority order.
// The three risk tiers are exclusive, density, motion, and anomaly each stand alone.
func (am *AlertManager) Evaluate(p AlertPolicy, o Observation) []Ct.AlertRecord {
	var raised []Ct.AlertRecord

	switch {
	case o.Risk > p.Critical:
		raised = append(raised, am.Raise(KindCritical, Ct.SeverityHigh,
			fmt.Sprintf("EMERGENCY: Risk level at %s!", percent(o.Risk))))
	case o.Risk > p.High:
		raised = append(raised, am.Raise(KindHighRisk, Ct.SeverityHigh,
			fmt.Sprintf("High crowd risk detected: %s", percent(o.Risk))))
	case o.Risk > p.Moderate:
		raised = append(raised, am.Raise(KindModerate, Ct.SeverityMedium,
			fmt.Sprintf("Caution advised: Risk at %s", percent(o.Risk))))
	}

	if o.Density > p.Density {
		raised = append(raised, am.Raise(KindDensity, Ct.SeverityHigh,
			fmt.Sprintf("Severe crowding: %s capacity", percent(o.Density))))
	}

	if o.Motion > p.Motion {
		raised = append(raised, am.Raise(KindMotion, Ct.SeverityMedium,
			fmt.Sprintf("Intense movement: %.1f px/frame", o.Motion)))
	}

	if o.AnomalyScore > p.Anomaly {
		raised = append(raised, am.Raise(KindAnomaly, Ct.SeverityMedium,
			"Unusual crowd behavior pattern"))
	}

	return raised
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Active returns a copy, oldest first
func (am *AlertManager) Active() []Ct.AlertRecord {
	am.MU.RLock()
	defer am.MU.RUnlock()
	out := make([]Ct.AlertRecord, len(am.active))
	copy(out, am.active)
	return out
}

// Recent returns a copy, oldest first
func (am *AlertManager) Recent() []Ct.AlertRecord {
	am.MU.RLock()
	defer am.MU.RUnlock()
	return am.recent.Snapshot()
}
