package services

import (
	"context"
)

// Notifier receives membership churn events after a reconciliation commits.
// Delivery is best-effort: membership state in the database is the source of
// truth, and a failed notification is logged, never retried.
type Notifier interface {
	Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error
}

// NoopNotifier is used when no sink is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error {
	return nil
}

// MultiNotifier fans one event out to several sinks. Each sink gets its
// chance even if an earlier one fails; the first error is returned for
// logging.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, segmentName, addedIDs, removedIDs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
