package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dealcaster/internal/model"
)

// Peak-hour boost and human-variation bounds for the hourly target.
const (
	peakBoostMin     = 2
	peakBoostMax     = 5
	perturbationSpan = 2 // final perturbation in [-2, 2]
)

// PlannerConfig carries the tunables of the hourly planning pass.
type PlannerConfig struct {
	MinPerHour    int
	MaxPerHour    int
	StartHour     int // inclusive
	EndHour       int // exclusive
	PeakHours     []int
	Categories    []string
	HotLimit      int
	CategoryCount int
	CategoryLimit int
	MinDiscount   int
	Location      *time.Location
}

// Planner builds one hour's selection: pool fetch, anti-repetition filter,
// scoring, ranked top-N cut.
type Planner struct {
	market Marketplace
	guard  RepetitionGuard
	scorer Scorer
	rng    Rand
	clock  Clock

	mu  sync.Mutex
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig, market Marketplace, guard RepetitionGuard, scorer Scorer, rng Rand, clock Clock) *Planner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Planner{market: market, guard: guard, scorer: scorer, rng: rng, clock: clock, cfg: cfg}
}

// InWindow reports whether the given instant falls in the active window.
func (p *Planner) InWindow(t time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := t.In(p.cfg.Location).Hour()
	return h >= p.cfg.StartHour && h < p.cfg.EndHour
}

// IsPeakHour reports whether the hour belongs to the configured peak set.
func (p *Planner) IsPeakHour(hour int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isPeakLocked(hour)
}

func (p *Planner) isPeakLocked(hour int) bool {
	for _, h := range p.cfg.PeakHours {
		if h == hour {
			return true
		}
	}
	return false
}

// Location returns the planner's timezone.
func (p *Planner) Location() *time.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Location
}

// AdjustFrequency updates the per-hour bounds used by the next cycle.
func (p *Planner) AdjustFrequency(min, max int) error {
	if min <= 0 || max < min {
		return fmt.Errorf("invalid frequency bounds %d-%d", min, max)
	}
	p.mu.Lock()
	p.cfg.MinPerHour = min
	p.cfg.MaxPerHour = max
	p.mu.Unlock()
	slog.Info("planner: frequency adjusted.", "min", min, "max", max)
	return nil
}

// TargetCount draws this hour's post target: uniform in [min,max], a peak
// boost when applicable, a final perturbation, clamped back to [min,max].
func (p *Planner) TargetCount(hour int) int {
	p.mu.Lock()
	min, max := p.cfg.MinPerHour, p.cfg.MaxPerHour
	peak := p.isPeakLocked(hour)
	p.mu.Unlock()

	target := min + p.rng.Intn(max-min+1)
	if peak {
		boost := peakBoostMin + p.rng.Intn(peakBoostMax-peakBoostMin+1)
		if target+boost > max {
			target = max
		} else {
			target += boost
		}
	}
	target += p.rng.Intn(2*perturbationSpan+1) - perturbationSpan
	if target < min {
		target = min
	}
	if target > max {
		target = max
	}
	return target
}

// FetchPool gathers the hour's candidate pool: a hot batch plus a few random
// keyword categories, deduplicated by product id keeping first occurrence.
// Partial failures degrade to a smaller pool.
func (p *Planner) FetchPool(ctx context.Context) []model.Product {
	p.mu.Lock()
	hotLimit := p.cfg.HotLimit
	catCount := p.cfg.CategoryCount
	catLimit := p.cfg.CategoryLimit
	minDiscount := p.cfg.MinDiscount
	categories := p.cfg.Categories
	p.mu.Unlock()

	var pool []model.Product
	hot, err := p.market.FetchHot(ctx, hotLimit)
	if err != nil {
		slog.Error("planner: hot products fetch failed.", "error", err)
	} else {
		pool = append(pool, hot...)
	}

	for _, ci := range p.sampleCategories(categories, catCount) {
		items, err := p.market.Search(ctx, ci, minDiscount, catLimit)
		if err != nil {
			slog.Warn("planner: category search failed.", "category", ci, "error", err)
			continue
		}
		pool = append(pool, items...)
	}

	seen := make(map[string]struct{}, len(pool))
	unique := pool[:0]
	for _, item := range pool {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		unique = append(unique, item)
	}
	slog.Info("planner: candidate pool assembled.", "unique", len(unique))
	return unique
}

func (p *Planner) sampleCategories(categories []string, n int) []string {
	if n >= len(categories) {
		return categories
	}
	perm := p.rng.Perm(len(categories))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, categories[idx])
	}
	return out
}

// Select filters the pool through the repetition guard, scores survivors and
// returns the top targetCount by score (ties broken by id for determinism).
func (p *Planner) Select(ctx context.Context, pool []model.Product, targetCount int) []model.ScoredProduct {
	scored := make([]model.ScoredProduct, 0, len(pool))
	for _, item := range pool {
		ok, err := p.guard.CanPost(ctx, item.ID, false)
		if err != nil {
			slog.Error("planner: repetition check failed.", "id", item.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		scored = append(scored, model.ScoredProduct{
			Product: item,
			Score:   p.scorer.Score(ctx, item),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Product.ID < scored[j].Product.ID
	})
	if len(scored) > targetCount {
		scored = scored[:targetCount]
	}
	if len(scored) < targetCount {
		slog.Warn("planner: selection shortfall.", "selected", len(scored), "target", targetCount)
	}
	return scored
}

// PlanHour runs one full planning pass for the hour containing now.
// Returns a nil selection when the hour is outside the active window.
func (p *Planner) PlanHour(ctx context.Context) (selection []model.ScoredProduct, target int, err error) {
	now := p.clock.Now().In(p.Location())
	if !p.InWindow(now) {
		slog.Info("planner: outside active window.", "hour", now.Hour())
		return nil, 0, nil
	}
	target = p.TargetCount(now.Hour())
	slog.Info("planner: cycle started.", "hour", now.Hour(), "target", target)

	pool := p.FetchPool(ctx)
	if len(pool) == 0 {
		return nil, target, fmt.Errorf("empty candidate pool for hour %d", now.Hour())
	}
	return p.Select(ctx, pool, target), target, nil
}
