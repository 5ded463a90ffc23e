package placewatch

import (
	"context"
	"time"

	"github.com/hazyhaar/reviewbuddy/place"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/panel"
)

// Status is a point-in-time view of the watcher.
type Status struct {
	State      string       `json:"state"`
	Generation uint64       `json:"generation"`
	Place      *PlaceStatus `json:"place,omitempty"`
	Score      ScoreStatus  `json:"score"`
	Panel      PanelStatus  `json:"panel"`
	RunID      string       `json:"run_id,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
}

// PlaceStatus is the tracked place.
type PlaceStatus struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
}

// ScoreStatus is a score with its state spelled out.
type ScoreStatus struct {
	State string   `json:"state"`
	Value *float64 `json:"value,omitempty"`
}

// PanelStatus is the injected panel.
type PanelStatus struct {
	Injected  bool   `json:"injected"`
	Minimized bool   `json:"minimized"`
	Observer  string `json:"observer"`
}

func scoreStatus(s place.Score) ScoreStatus {
	out := ScoreStatus{State: string(s.State)}
	if s.State == place.ScoreValue {
		v := s.Value
		out.Value = &v
	}
	return out
}

func placeStatus(r place.Record) *PlaceStatus {
	city, _ := r.City()
	return &PlaceStatus{Name: r.Name, Address: r.Address, City: city}
}

// Status returns the current state.
func (w *Watcher) Status() Status {
	snap := w.rec.Snapshot()
	st := Status{
		State:      string(snap.State),
		Generation: snap.Generation,
		Score:      scoreStatus(snap.Score),
		Panel: PanelStatus{
			Injected:  w.renderer.Injected(),
			Minimized: w.renderer.Minimized(),
			Observer:  string(w.observer.Scope()),
		},
		RunID: w.runID(),
	}
	if snap.Record != nil {
		st.Place = placeStatus(*snap.Record)
	}
	if w.journal != nil {
		if t, ok := w.journal.StartedAt(); ok {
			st.StartedAt = &t
		}
	}
	return st
}

// PanelMarkdown renders the panel's last view as markdown.
func (w *Watcher) PanelMarkdown() (string, error) {
	return panel.Markdown(w.renderer.View())
}

// ScoreFor resolves a score for an arbitrary place, outside the tracked
// state. It uses a separate client, so its failures never open the breaker
// guarding the tracked place.
func (w *Watcher) ScoreFor(ctx context.Context, r place.Record) (ScoreStatus, string) {
	u, _ := w.lookup.RequestURL(r)
	return scoreStatus(w.lookup.FetchScore(ctx, r)), u
}

// SetPanel applies a panel control: minimize, maximize or toggle.
func (w *Watcher) SetPanel(op string) bool {
	switch op {
	case "minimize":
		w.renderer.Minimize()
	case "maximize":
		w.renderer.Maximize()
	case "toggle":
		w.renderer.Toggle()
	default:
		return false
	}
	return true
}
