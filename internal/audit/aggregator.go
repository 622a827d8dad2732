package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// envelope extracts the common fields of any engine event.
type envelope struct {
	Type       string `json:"type"`
	Vocabulary string `json:"vocabulary"`
	Outcome    string `json:"outcome"`
	Critical   bool   `json:"critical"`
}

// Aggregator folds consumed audit events into in-memory counters, exposed
// over HTTP for operational inspection.
type Aggregator struct {
	mu       sync.RWMutex
	byType   map[string]int64
	byVocab  map[string]int64
	outcomes map[string]int64
	critical int64
	since    time.Time
	logger   *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		byType:   make(map[string]int64),
		byVocab:  make(map[string]int64),
		outcomes: make(map[string]int64),
		since:    time.Now().UTC(),
		logger:   slog.Default().With("component", "audit-aggregator"),
	}
}

// Handle is the kafka.MessageHandler that consumes one audit event.
func (a *Aggregator) Handle(_ context.Context, _ []byte, value []byte) error {
	var ev envelope
	if err := json.Unmarshal(value, &ev); err != nil {
		a.logger.Warn("unparseable audit event", "error", err)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.byType[ev.Type]++
	if ev.Vocabulary != "" {
		a.byVocab[ev.Vocabulary]++
	}
	if ev.Outcome != "" {
		a.outcomes[ev.Outcome]++
	}
	if ev.Critical {
		a.critical++
	}
	return nil
}

// StatsHandler returns an HTTP handler serving the aggregated counters.
func (a *Aggregator) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		payload := map[string]any{
			"since":            a.since.Format(time.RFC3339),
			"events_by_type":   copyCounts(a.byType),
			"events_by_vocab":  copyCounts(a.byVocab),
			"refresh_outcomes": copyCounts(a.outcomes),
			"critical_reports": a.critical,
		}
		a.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			a.logger.Error("failed to write stats", "error", err)
		}
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
