package events

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fanout publishes every event to all of its sinks concurrently. A failing
// sink does not stop delivery to the others; the first error is returned.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var g errgroup.Group
	for _, p := range f {
		if p == nil {
			continue
		}
		g.Go(func() error {
			return p.Publish(ctx, evt)
		})
	}
	return g.Wait()
}
