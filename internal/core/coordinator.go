package core

import (
	"context"
	"errors"
	"occupancy/internal/events"
	"occupancy/pkg/domain"
	"time"
)

// Coordinator runs every mutation of the occupancy model as one unit of work.
// The store serializes writers, so a unit of work holds the writer lock from
// its first read until commit. Committed change sets are published as events
// after the lock is released.
type Coordinator struct {
	store domain.PersistentStore
	bus   *events.Bus
	opts  serviceOptions
}

// NewCoordinator wraps a persistent store.
func NewCoordinator(store domain.PersistentStore, opts ...Option) *Coordinator {
	return &Coordinator{
		store: store,
		bus:   events.NewBus(),
		opts:  applyOptions(opts),
	}
}

// Store returns the underlying store.
func (c *Coordinator) Store() domain.PersistentStore { return c.store }

// Subscribe registers an in-process handler for committed-mutation events.
func (c *Coordinator) Subscribe(h events.Handler) func() { return c.bus.Subscribe(h) }

// Run executes fn inside a transaction. fn returning nil commits; any error
// rolls back every write fn made. Errors are returned classified: blocking rule
// results become a ConflictError naming the invariant and unclassified failures
// become a PersistenceError.
func (c *Coordinator) Run(ctx context.Context, op string, fn func(tx domain.Transaction) error) (domain.Result, error) {
	ctx, span := c.opts.tracer.Start(ctx, op)
	start := c.opts.clock.Now()

	var changes []domain.Change
	res, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	err = classify(op, err)
	duration := c.opts.clock.Now().Sub(start)

	c.opts.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)
	c.logOutcome(op, err, duration, len(changes))
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			c.opts.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
		}
	}
	if err != nil {
		return res, err
	}
	c.publish(ctx, op, changes)
	return res, nil
}

// View runs fn against a read-only snapshot of the committed state.
func (c *Coordinator) View(ctx context.Context, fn func(view domain.TransactionView) error) error {
	if err := c.store.View(ctx, fn); err != nil {
		return classify("view", err)
	}
	return nil
}

func (c *Coordinator) publish(ctx context.Context, op string, changes []domain.Change) {
	for _, evt := range events.FromChanges(op, c.opts.clock.Now(), changes) {
		_ = c.bus.Publish(ctx, evt)
		if err := c.opts.publisher.Publish(ctx, evt); err != nil {
			c.opts.logger.Warn("event delivery failed", "operation", op, "topic", string(evt.Topic), "event_id", evt.ID, "error", err)
		}
	}
}

func (c *Coordinator) logOutcome(op string, err error, duration time.Duration, changes int) {
	if err == nil {
		c.opts.logger.Debug("transaction committed", "operation", op, "changes", changes, "duration_ms", duration.Milliseconds())
		return
	}
	kind := domain.KindOf(err)
	if kind == domain.KindPersistence {
		c.opts.logger.Error("transaction failed", "operation", op, "kind", string(kind), "error", err)
		return
	}
	c.opts.logger.Warn("transaction rejected", "operation", op, "kind", string(kind), "error", err)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var blocked domain.RuleViolationError
	if errors.As(err, &blocked) {
		return blocked.Conflict()
	}
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.PersistenceError{Op: op, Err: err}
}
