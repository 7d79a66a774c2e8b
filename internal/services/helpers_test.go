package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hisaab/internal/events"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	changes []events.Change
	err     error
}

func (r *recorder) Publish(_ context.Context, c events.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return r.err
}

func (r *recorder) last() events.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return events.Change{}
	}
	return r.changes[len(r.changes)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

var errBroker = errors.New("broker unavailable")

// sequentialIDs returns id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func testOptions(p events.Publisher) []Option {
	return []Option{
		WithPublisher(p),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs()),
	}
}
