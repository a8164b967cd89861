// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// fanOut researches every sub-question in parallel. Each goroutine writes
// only its own slot. A research error means ctx is done, so the first one
// cancels the rest and is returned.
func (o *Orchestrator) fanOut(ctx context.Context, r *run, subs []types.SubQuestion) ([]types.Finding, error) {
	findings := make([]types.Finding, len(subs))
	g, gctx := errgroup.WithContext(ctx)

	for i, sq := range subs {
		g.Go(func() error {
			f, err := o.researcher.Research(gctx, sq)
			if err != nil {
				return err
			}
			findings[i] = f
			r.emit(i+1, fmt.Sprintf("sub-question %d: %s", i+1, f.Status))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancelled parent may still yield complete findings; do not write
	// a report the caller has abandoned.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}
