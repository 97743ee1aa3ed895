// Package scoring ranks products with a hand-tuned multi-factor heuristic.
// Every factor is bounded, the combination is weighted, and the final score
// is clamped to [0,100]. Store failures degrade the affected factor to zero
// instead of failing the product.
package scoring

import (
	"context"
	"log/slog"
	"time"

	"dealcaster/internal/model"
)

// Factor weights. They sum to 1.0.
const (
	weightDiscount   = 0.25
	weightRating     = 0.20
	weightVolume     = 0.15
	weightCommission = 0.15
	weightTrending   = 0.10
	weightHistorical = 0.10
	weightFreshness  = 0.05
)

// HistoryReader is the slice of the history store the engine needs.
type HistoryReader interface {
	PostingRecord(ctx context.Context, productID string) (*model.PostingRecord, error)
	TrendingEntry(ctx context.Context, productID string) (*model.TrendingEntry, error)
	ClicksSince(ctx context.Context, productID string, since time.Time) (int64, error)
}

// Breakdown exposes the per-factor sub-scores for inspection commands.
type Breakdown struct {
	Discount   float64
	Rating     float64
	Volume     float64
	Commission float64
	Trending   float64
	Historical float64
	Freshness  float64
	Boost      float64
	Final      float64
}

// Engine computes composite product scores.
type Engine struct {
	history HistoryReader
	now     func() time.Time
}

func NewEngine(history HistoryReader) *Engine {
	return &Engine{history: history, now: time.Now}
}

// NewEngineAt builds an engine with an explicit clock, for tests.
func NewEngineAt(history HistoryReader, now func() time.Time) *Engine {
	return &Engine{history: history, now: now}
}

// Score computes the composite score for a product. Always in [0,100].
func (e *Engine) Score(ctx context.Context, p model.Product) float64 {
	return e.ScoreDetailed(ctx, p).Final
}

// ScoreDetailed computes the composite score and returns the sub-scores.
func (e *Engine) ScoreDetailed(ctx context.Context, p model.Product) Breakdown {
	b := Breakdown{
		Discount:   discountScore(p.Discount),
		Rating:     ratingScore(p.Rating, p.ReviewCount),
		Volume:     volumeScore(p.Volume),
		Commission: commissionScore(p.CommissionRate),
		Trending:   e.trendingScore(ctx, p.ID),
		Historical: e.historicalScore(ctx, p.ID),
		Freshness:  e.freshnessScore(ctx, p.ID),
	}
	sum := b.Discount*weightDiscount +
		b.Rating*weightRating +
		b.Volume*weightVolume +
		b.Commission*weightCommission +
		b.Trending*weightTrending +
		b.Historical*weightHistorical +
		b.Freshness*weightFreshness
	b.Boost = premiumBoost(p)
	b.Final = clamp(sum + b.Boost)
	return b
}

func discountScore(discount float64) float64 {
	switch {
	case discount >= 70:
		return 100
	case discount >= 50:
		return 80
	case discount >= 30:
		return 60
	case discount >= 20:
		return 40
	case discount >= 10:
		return 20
	default:
		return 0
	}
}

func ratingScore(rating float64, reviews int) float64 {
	var base float64
	switch {
	case rating >= 4.8:
		base = 100
	case rating >= 4.5:
		base = 80
	case rating >= 4.0:
		base = 60
	case rating >= 3.5:
		base = 40
	case rating >= 3.0:
		base = 20
	}
	var boost float64
	switch {
	case reviews >= 1000:
		boost = 20
	case reviews >= 500:
		boost = 15
	case reviews >= 100:
		boost = 10
	case reviews >= 50:
		boost = 5
	}
	return min100(base + boost)
}

func volumeScore(volume int) float64 {
	switch {
	case volume >= 10000:
		return 100
	case volume >= 5000:
		return 80
	case volume >= 1000:
		return 60
	case volume >= 500:
		return 40
	case volume >= 100:
		return 20
	default:
		return 0
	}
}

func commissionScore(rate float64) float64 {
	switch {
	case rate >= 10:
		return 100
	case rate >= 8:
		return 80
	case rate >= 6:
		return 60
	case rate >= 4:
		return 40
	case rate >= 2:
		return 20
	default:
		return 0
	}
}

// trendingScore prefers the precomputed trending entry; without one it falls
// back to counting clicks in the trailing 24 hours.
func (e *Engine) trendingScore(ctx context.Context, id string) float64 {
	entry, err := e.history.TrendingEntry(ctx, id)
	if err != nil {
		slog.Error("scoring: trending lookup failed.", "id", id, "error", err)
		return 0
	}
	if entry != nil {
		return min100(entry.TrendScore + entry.ClickVelocity)
	}
	clicks, err := e.history.ClicksSince(ctx, id, e.now().Add(-24*time.Hour))
	if err != nil {
		slog.Error("scoring: recent clicks lookup failed.", "id", id, "error", err)
		return 0
	}
	if clicks > 0 {
		return min100(float64(clicks) * 10)
	}
	return 0
}

func (e *Engine) historicalScore(ctx context.Context, id string) float64 {
	rec, err := e.history.PostingRecord(ctx, id)
	if err != nil {
		slog.Error("scoring: posting record lookup failed.", "id", id, "error", err)
		return 0
	}
	if rec == nil {
		return 0
	}
	score := (rec.ConversionScore + rec.EngagementScore) / 2
	switch {
	case rec.Clicks > 100:
		score += 20
	case rec.Clicks > 50:
		score += 10
	case rec.Clicks > 10:
		score += 5
	}
	return min100(score)
}

// freshnessScore gives never-posted products a moderate default while
// recently-posted ones drop to zero and recover with age.
func (e *Engine) freshnessScore(ctx context.Context, id string) float64 {
	rec, err := e.history.PostingRecord(ctx, id)
	if err != nil {
		slog.Error("scoring: freshness lookup failed.", "id", id, "error", err)
		return 0
	}
	if rec == nil {
		return 50
	}
	days := int(e.now().Sub(rec.PostedAt).Hours() / 24)
	switch {
	case days == 0:
		return 0
	case days <= 1:
		return 10
	case days <= 7:
		return 20
	case days <= 30:
		return 30
	default:
		return 40
	}
}

// premiumBoost rewards products strong on several axes at once.
// Applied once, after the weighted sum, before the final clamp.
func premiumBoost(p model.Product) float64 {
	switch {
	case p.Rating >= 4.5 && p.Volume >= 1000 && p.Discount >= 30:
		return 15
	case p.Rating >= 4.0 && p.Volume >= 500 && p.Discount >= 20:
		return 10
	case p.Rating >= 3.5 && p.Volume >= 100:
		return 5
	default:
		return 0
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
