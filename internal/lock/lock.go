// Package lock provides the run lock that keeps scrape and alert passes
// from touching the offers tables at the same time.
package lock

import (
	"context"
	"sync"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

// Local is an in-process lock for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

// TryLock never blocks: a held key returns models.ErrRunInProgress.
func (l *Local) TryLock(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, models.ErrRunInProgress
	}
	l.held[key] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
