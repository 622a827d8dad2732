// Package compliance runs the matching engine over whole ingredient lists
// and folds the per-ingredient results into vocabulary-level reports. The
// aggregator performs no I/O of its own beyond one snapshot cache get per
// vocabulary; everything downstream of the snapshot is pure.
package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/markahope-aag/labelcheck-sub001/internal/allergen"
	"github.com/markahope-aag/labelcheck-sub001/internal/match"
	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/cache"
	"github.com/markahope-aag/labelcheck-sub001/pkg/metrics"
)

// Report is the aggregate compliance outcome for one ingredient list against
// one vocabulary (or the NDI/ODI pair).
type Report struct {
	Vocabulary       string         `json:"vocabulary"`
	TotalIngredients int            `json:"total_ingredients"`
	Matched          []match.Result `json:"matched"`
	Unmatched        []string       `json:"unmatched"`
	// Critical flags reports that carry regulatory risk per the vocabulary's
	// policy, typically because an ingredient has no recognized entry.
	Critical bool `json:"critical"`
}

// CriticalPolicy decides whether a finished report must be flagged critical.
type CriticalPolicy func(r *Report) bool

// CriticalOnUnmatched flags any report with at least one unmatched
// ingredient. This is the right default for GRAS, where an unrecognized
// substance implies regulatory risk, and for NDI/ODI, where it means a new
// dietary ingredient lacking notification.
func CriticalOnUnmatched(r *Report) bool {
	return len(r.Unmatched) > 0
}

// NeverCritical downgrades the flag entirely, for callers that track
// notifications out of band.
func NeverCritical(*Report) bool {
	return false
}

// AggregateEvent is the structured observability event emitted once per
// aggregate call.
type AggregateEvent struct {
	Type           string        `json:"type"`
	Vocabulary     string        `json:"vocabulary"`
	TotalCount     int           `json:"total_count"`
	MatchedCount   int           `json:"matched_count"`
	UnmatchedCount int           `json:"unmatched_count"`
	Critical       bool          `json:"critical"`
	Duration       time.Duration `json:"duration"`
	Timestamp      time.Time     `json:"timestamp"`
}

// EventTracker receives observability events. Implemented by audit.Collector.
type EventTracker interface {
	Track(event any)
}

// Aggregator is the caller-facing surface of the matching engine.
type Aggregator struct {
	cache    *cache.Cache
	matcher  *match.Matcher
	resolver *allergen.Resolver
	policies map[vocab.ID]CriticalPolicy
	metrics  *metrics.Metrics
	tracker  EventTracker
	logger   *slog.Logger
}

// Option configures optional aggregator collaborators.
type Option func(*Aggregator)

// WithMetrics wires Prometheus collectors into the aggregator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithTracker wires an observability event sink into the aggregator.
func WithTracker(t EventTracker) Option {
	return func(a *Aggregator) { a.tracker = t }
}

// WithCriticalPolicy overrides the critical policy for one vocabulary.
func WithCriticalPolicy(id vocab.ID, p CriticalPolicy) Option {
	return func(a *Aggregator) { a.policies[id] = p }
}

// NewAggregator creates an Aggregator over the given snapshot cache. Every
// vocabulary starts with the CriticalOnUnmatched policy.
func NewAggregator(c *cache.Cache, m *match.Matcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		cache:    c,
		matcher:  m,
		resolver: allergen.New(m),
		policies: map[vocab.ID]CriticalPolicy{
			vocab.GRAS: CriticalOnUnmatched,
			vocab.NDI:  CriticalOnUnmatched,
			vocab.ODI:  CriticalOnUnmatched,
		},
		logger: slog.Default().With("component", "compliance-aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CheckGRAS reports whether every ingredient is a recognized GRAS substance.
func (a *Aggregator) CheckGRAS(ctx context.Context, ingredients []string) (*Report, error) {
	snap, err := a.cache.Get(ctx, vocab.GRAS)
	if err != nil {
		return nil, err
	}
	return a.aggregate(ingredients, string(vocab.GRAS), a.policies[vocab.GRAS], snap), nil
}

// CheckNDIODI checks ingredients against both dietary-ingredient
// vocabularies, treating a match in either as compliant. The better of the
// two results wins per ingredient: any NDI hit is kept unless the ODI hit
// outranks it (exact beats synonym beats fuzzy).
func (a *Aggregator) CheckNDIODI(ctx context.Context, ingredients []string) (*Report, error) {
	ndi, err := a.cache.Get(ctx, vocab.NDI)
	if err != nil {
		return nil, err
	}
	odi, err := a.cache.Get(ctx, vocab.ODI)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{
		Vocabulary:       "ndi+odi",
		TotalIngredients: len(ingredients),
	}
	for _, raw := range ingredients {
		name := normalize.Name(raw)
		result := a.matcher.Match(name, ndi)
		if other := a.matcher.Match(name, odi); rank(other.Type) > rank(result.Type) {
			result = other
		}
		result.Input = raw
		a.countMatch("ndi+odi", result.Type)
		if result.Matched() {
			report.Matched = append(report.Matched, result)
		} else {
			report.Unmatched = append(report.Unmatched, raw)
		}
	}
	policy := a.policies[vocab.NDI]
	report.Critical = policy(report)
	a.finish(report, time.Since(start))
	return report, nil
}

// CheckAllergens resolves the ingredient list against the allergen
// vocabulary and reports detected categories.
func (a *Aggregator) CheckAllergens(ctx context.Context, ingredients []string) (*allergen.Report, error) {
	snap, err := a.cache.Get(ctx, vocab.Allergens)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	report := a.resolver.Resolve(ingredients, snap)
	duration := time.Since(start)

	for _, res := range report.PerIngredient {
		a.countMatch(string(vocab.Allergens), res.MatchType)
	}
	if a.metrics != nil {
		a.metrics.AggregateDuration.WithLabelValues(string(vocab.Allergens)).Observe(duration.Seconds())
	}
	a.emit(AggregateEvent{
		Type:         "compliance_aggregate",
		Vocabulary:   string(vocab.Allergens),
		TotalCount:   report.TotalIngredients,
		MatchedCount: len(report.PerIngredient),
		Critical:     report.ContainsRequired,
		Duration:     duration,
		Timestamp:    time.Now().UTC(),
	})
	return &report, nil
}

// Check runs a single-vocabulary compliance check; id must be GRAS, NDI, or
// ODI.
func (a *Aggregator) Check(ctx context.Context, id vocab.ID, ingredients []string) (*Report, error) {
	snap, err := a.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.aggregate(ingredients, string(id), a.policies[id], snap), nil
}

// aggregate matches every ingredient against one snapshot and buckets the
// results. Blank entries are not an error: they land in unmatched with match
// type none and processing continues.
func (a *Aggregator) aggregate(ingredients []string, vocabulary string, policy CriticalPolicy, snap *vocab.Snapshot) *Report {
	start := time.Now()
	report := &Report{
		Vocabulary:       vocabulary,
		TotalIngredients: len(ingredients),
	}
	for _, raw := range ingredients {
		result := a.matcher.Match(normalize.Name(raw), snap)
		result.Input = raw
		a.countMatch(vocabulary, result.Type)
		if result.Matched() {
			report.Matched = append(report.Matched, result)
		} else {
			report.Unmatched = append(report.Unmatched, raw)
		}
	}
	if policy == nil {
		policy = CriticalOnUnmatched
	}
	report.Critical = policy(report)
	a.finish(report, time.Since(start))
	return report
}

func (a *Aggregator) finish(report *Report, duration time.Duration) {
	if a.metrics != nil {
		a.metrics.AggregateDuration.WithLabelValues(report.Vocabulary).Observe(duration.Seconds())
		if report.Critical {
			a.metrics.CriticalReportsTotal.WithLabelValues(report.Vocabulary).Inc()
		}
	}
	a.logger.Info("compliance aggregate",
		"vocabulary", report.Vocabulary,
		"total", report.TotalIngredients,
		"matched", len(report.Matched),
		"unmatched", len(report.Unmatched),
		"critical", report.Critical,
		"duration_ms", duration.Milliseconds(),
	)
	a.emit(AggregateEvent{
		Type:           "compliance_aggregate",
		Vocabulary:     report.Vocabulary,
		TotalCount:     report.TotalIngredients,
		MatchedCount:   len(report.Matched),
		UnmatchedCount: len(report.Unmatched),
		Critical:       report.Critical,
		Duration:       duration,
		Timestamp:      time.Now().UTC(),
	})
}

func (a *Aggregator) countMatch(vocabulary string, t match.Type) {
	if a.metrics != nil {
		a.metrics.MatchResultsTotal.WithLabelValues(vocabulary, string(t)).Inc()
	}
}

func (a *Aggregator) emit(ev AggregateEvent) {
	if a.tracker != nil {
		a.tracker.Track(ev)
	}
}

// rank orders match types for the NDI/ODI better-of-two merge.
func rank(t match.Type) int {
	switch t {
	case match.TypeExact:
		return 3
	case match.TypeSynonym:
		return 2
	case match.TypeFuzzy:
		return 1
	default:
		return 0
	}
}
