package sched

import (
	"context"
	"math/rand"
	"sync"

	"dealcaster/internal/model"
)

// Marketplace is the product source consumed during planning.
type Marketplace interface {
	FetchHot(ctx context.Context, limit int) ([]model.Product, error)
	Search(ctx context.Context, keywords string, minDiscount, limit int) ([]model.Product, error)
}

// Publisher delivers one product to the broadcast channel.
type Publisher interface {
	Publish(ctx context.Context, p model.Product) error
}

// RepetitionGuard answers whether a product may be posted now.
type RepetitionGuard interface {
	CanPost(ctx context.Context, productID string, forcePost bool) (bool, error)
}

// Scorer computes the composite desirability score.
type Scorer interface {
	Score(ctx context.Context, p model.Product) float64
}

// PostRecorder persists a successful posting.
type PostRecorder interface {
	RecordPost(ctx context.Context, p model.Product, score float64) error
}

// Rand is the randomness the scheduler consumes. Seedable for reproducible
// runs.
type Rand interface {
	Intn(n int) int
	Perm(n int) []int
}

// lockedRand makes a *rand.Rand safe for use from planner and dispatcher.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a seedable Rand.
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Perm(n int) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Perm(n)
}
