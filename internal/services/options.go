package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hisaab/internal/events"
	"hisaab/internal/log"
	"hisaab/internal/metrics"
)

// deps are the collaborators every service shares.
type deps struct {
	publisher events.Publisher
	loc       *time.Location
	now       func() time.Time
	newID     func() string
	logger    *log.Logger
	metrics   *metrics.Metrics
}

type Option func(*deps)

// WithPublisher sets where change notifications go after a committed write.
func WithPublisher(p events.Publisher) Option { return func(d *deps) { d.publisher = p } }

// WithLocation sets the zone used to turn timestamps into calendar dates.
func WithLocation(loc *time.Location) Option { return func(d *deps) { d.loc = loc } }

func WithClock(now func() time.Time) Option { return func(d *deps) { d.now = now } }

func WithIDGenerator(fn func() string) Option { return func(d *deps) { d.newID = fn } }

func WithLogger(l *log.Logger) Option { return func(d *deps) { d.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(d *deps) { d.metrics = m } }

func newDeps(component string, opts []Option) deps {
	d := deps{
		publisher: events.Discard,
		loc:       time.UTC,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    log.New(log.Config{Handler: slog.Default().Handler()}),
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.loc == nil {
		d.loc = time.UTC
	}
	if d.publisher == nil {
		d.publisher = events.Discard
	}
	d.logger = d.logger.WithComponent(component)
	return d
}

// notify publishes a change. A failed publish is logged and counted but never
// fails the write that caused it.
func (d deps) notify(ctx context.Context, owner string, entity events.Entity, op events.Op, id string) {
	d.metrics.ObserveWrite(string(entity), string(op))
	c := events.Change{Owner: owner, Entity: entity, Op: op, ID: id, At: d.now()}
	if err := d.publisher.Publish(ctx, c); err != nil {
		d.metrics.ObservePublishFailure()
		d.logger.WarnContext(ctx, "Failed to publish change",
			log.FieldUserID, owner,
			log.FieldEntity, entity,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
