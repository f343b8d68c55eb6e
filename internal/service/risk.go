package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"tx-coordinator/internal/models"
)

// UniformScorer draws a fraud score uniformly from [0, max). A production
// deployment replaces this with a client for a real scoring model; the
// coordinator only sees the RiskScorer interface either way.
type UniformScorer struct {
	max float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewUniformScorer creates a scorer drawing from [0, max).
func NewUniformScorer(max float64) *UniformScorer {
	return &UniformScorer{
		max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Score returns a random score. Honors cancellation so a dead saga context
// is treated as a scoring failure.
func (s *UniformScorer) Score(ctx context.Context, _ models.TransactionContext) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() * s.max, nil
}

// FixedScorer always returns the same score. Useful for tests and demos.
type FixedScorer struct {
	Value float64
}

// Score returns the fixed value.
func (s FixedScorer) Score(ctx context.Context, _ models.TransactionContext) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.Value, nil
}
