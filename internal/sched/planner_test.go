package sched

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dealcaster/internal/model"
)

type fakeMarket struct {
	hot      []model.Product
	bySearch map[string][]model.Product
	hotErr   error
}

func (f *fakeMarket) FetchHot(ctx context.Context, limit int) ([]model.Product, error) {
	if f.hotErr != nil {
		return nil, f.hotErr
	}
	if len(f.hot) > limit {
		return f.hot[:limit], nil
	}
	return f.hot, nil
}

func (f *fakeMarket) Search(ctx context.Context, keywords string, minDiscount, limit int) ([]model.Product, error) {
	return f.bySearch[keywords], nil
}

type fakeGuard struct {
	blocked map[string]bool
	err     error
}

func (f *fakeGuard) CanPost(ctx context.Context, id string, force bool) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.blocked[id], nil
}

type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) Score(ctx context.Context, p model.Product) float64 {
	return f.scores[p.ID]
}

func testPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MinPerHour:    20,
		MaxPerHour:    25,
		StartHour:     8,
		EndHour:       22,
		PeakHours:     []int{12, 13, 14, 20, 21},
		Categories:    []string{"electronics", "home", "beauty", "sports", "toys"},
		HotLimit:      30,
		CategoryCount: 3,
		CategoryLimit: 20,
		MinDiscount:   30,
		Location:      time.UTC,
	}
}

func product(id string) model.Product {
	return model.Product{ID: id, Title: "Product " + id}
}

func TestTargetCountAlwaysWithinBounds(t *testing.T) {
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, &fakeGuard{}, &fakeScorer{}, NewRand(1), NewRealClock())
	for _, hour := range []int{9, 12} { // off-peak and peak
		for i := 0; i < 10000; i++ {
			got := p.TargetCount(hour)
			if got < 20 || got > 25 {
				t.Fatalf("TargetCount(hour=%d) = %d, out of [20,25]", hour, got)
			}
		}
	}
}

func TestTargetCountRespectsAdjustedBounds(t *testing.T) {
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, &fakeGuard{}, &fakeScorer{}, NewRand(7), NewRealClock())
	if err := p.AdjustFrequency(5, 8); err != nil {
		t.Fatalf("AdjustFrequency error: %v", err)
	}
	for i := 0; i < 5000; i++ {
		got := p.TargetCount(13)
		if got < 5 || got > 8 {
			t.Fatalf("TargetCount = %d, out of [5,8]", got)
		}
	}
}

func TestAdjustFrequencyValidation(t *testing.T) {
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, &fakeGuard{}, &fakeScorer{}, NewRand(1), NewRealClock())
	if err := p.AdjustFrequency(0, 5); err == nil {
		t.Error("expected error for min=0")
	}
	if err := p.AdjustFrequency(10, 5); err == nil {
		t.Error("expected error for max<min")
	}
}

func TestInWindow(t *testing.T) {
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, &fakeGuard{}, &fakeScorer{}, NewRand(1), NewRealClock())
	cases := []struct {
		hour int
		want bool
	}{
		{7, false}, {8, true}, {15, true}, {21, true}, {22, false}, {23, false},
	}
	for _, tc := range cases {
		at := time.Date(2025, 6, 10, tc.hour, 30, 0, 0, time.UTC)
		if got := p.InWindow(at); got != tc.want {
			t.Errorf("InWindow(hour=%d) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestFetchPoolDeduplicates(t *testing.T) {
	market := &fakeMarket{
		hot: []model.Product{product("a"), product("b")},
		bySearch: map[string][]model.Product{
			"electronics": {product("b"), product("c")},
			"home":        {product("a"), product("d")},
			"beauty":      {product("c")},
			"sports":      {product("e")},
			"toys":        {product("f")},
		},
	}
	p := NewPlanner(testPlannerConfig(), market, &fakeGuard{}, &fakeScorer{}, NewRand(3), NewRealClock())
	pool := p.FetchPool(context.Background())
	seen := map[string]int{}
	for _, item := range pool {
		seen[item.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("product %s appears %d times in pool", id, n)
		}
	}
	// Hot products always present.
	if seen["a"] != 1 || seen["b"] != 1 {
		t.Errorf("hot products missing from pool: %v", seen)
	}
}

func TestFetchPoolDegradesOnHotFailure(t *testing.T) {
	market := &fakeMarket{
		hotErr: errors.New("api down"),
		bySearch: map[string][]model.Product{
			"electronics": {product("x")},
			"home":        {product("y")},
			"beauty":      {product("z")},
			"sports":      {product("w")},
			"toys":        {product("v")},
		},
	}
	p := NewPlanner(testPlannerConfig(), market, &fakeGuard{}, &fakeScorer{}, NewRand(3), NewRealClock())
	pool := p.FetchPool(context.Background())
	if len(pool) == 0 {
		t.Fatal("expected category results despite hot fetch failure")
	}
}

func TestSelectRespectsGuardAndTarget(t *testing.T) {
	var pool []model.Product
	scores := map[string]float64{}
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("p%02d", i)
		pool = append(pool, product(id))
		scores[id] = float64(i)
	}
	guard := &fakeGuard{blocked: map[string]bool{"p29": true, "p28": true}}
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, guard, &fakeScorer{scores: scores}, NewRand(1), NewRealClock())

	selection := p.Select(context.Background(), pool, 10)
	if len(selection) != 10 {
		t.Fatalf("selected %d, want 10", len(selection))
	}
	for _, sp := range selection {
		if guard.blocked[sp.Product.ID] {
			t.Errorf("selected blocked product %s", sp.Product.ID)
		}
	}
	// Highest eligible score first.
	if selection[0].Product.ID != "p27" {
		t.Errorf("top selection = %s, want p27", selection[0].Product.ID)
	}
	for i := 1; i < len(selection); i++ {
		if selection[i].Score > selection[i-1].Score {
			t.Errorf("selection not sorted by score at %d", i)
		}
	}
}

func TestSelectShortfallIsNonFatal(t *testing.T) {
	pool := []model.Product{product("a"), product("b")}
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, &fakeGuard{}, &fakeScorer{scores: map[string]float64{"a": 1, "b": 2}}, NewRand(1), NewRealClock())
	selection := p.Select(context.Background(), pool, 10)
	if len(selection) != 2 {
		t.Fatalf("selected %d, want 2", len(selection))
	}
}

func TestSelectTieBrokenByID(t *testing.T) {
	pool := []model.Product{product("b"), product("a"), product("c")}
	p := NewPlanner(testPlannerConfig(), &fakeMarket{}, &fakeGuard{}, &fakeScorer{scores: map[string]float64{"a": 50, "b": 50, "c": 50}}, NewRand(1), NewRealClock())
	selection := p.Select(context.Background(), pool, 3)
	got := []string{selection[0].Product.ID, selection[1].Product.ID, selection[2].Product.ID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}
