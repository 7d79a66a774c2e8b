// Package events carries "something in this ledger changed" notifications
// from the write path to whoever needs to react: cached views in the same
// process, the SSE stream, and other processes through AMQP.
package events

import (
	"context"
	"errors"
	"time"
)

// Entity names what kind of record changed.
type Entity string

// Op names what happened to it.
type Op string

const (
	EntityTransaction Entity = "transaction"
	EntityLoan        Entity = "loan"

	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change is one committed write against an owner's data.
type Change struct {
	Owner  string    `json:"owner"`
	Entity Entity    `json:"entity"`
	Op     Op        `json:"op"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
}

type (
	Publisher interface {
		Publish(ctx context.Context, c Change) error
	}

	// Subscriber hands out subscriptions. An empty owner receives every change.
	Subscriber interface {
		Subscribe(owner string) *Subscription
	}
)

// Subscription delivers changes on C until Close is called. C is closed
// afterwards.
type Subscription struct {
	C     <-chan Change
	close func()
}

func (s *Subscription) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// MultiPublisher publishes to every wrapped publisher and joins the errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, c Change) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every change.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Change) error { return nil }
