// Package broadcast runs one logical operation against every client that
// serves a kind and collects the answers.
package broadcast

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

// ErrSkip marks a strategy outcome that is dropped from the aggregate without
// failing it.
var ErrSkip = errors.New("broadcast: result skipped")

// Strategy is a deferred operation against one client
type Strategy[T any] func(ctx context.Context) (T, error)

// Summary counts the outcomes of one Execute call
type Summary struct {
	Dispatched int
	Succeeded  int
	NotFound   int
	Skipped    int
}

// Execute runs all strategies concurrently. Not-found and skipped outcomes are
// filtered out; the surviving results keep the order of strategies. Any other
// failure cancels the remaining strategies and is returned.
func Execute[T any](ctx context.Context, strategies []Strategy[T]) ([]T, error) {
	results, _, err := ExecuteWithSummary(ctx, strategies)
	return results, err
}

// ExecuteWithSummary is Execute, also reporting outcome counts
func ExecuteWithSummary[T any](ctx context.Context, strategies []Strategy[T]) ([]T, Summary, error) {
	summary := Summary{Dispatched: len(strategies)}

	slots := make([]T, len(strategies))
	outcomes := make([]error, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range strategies {
		i, strategy := i, strategy
		g.Go(func() error {
			v, err := strategy(gctx)
			switch {
			case err == nil:
				slots[i] = v
			case errors.Is(err, ErrSkip), clienterrors.IsNotFound(err):
				outcomes[i] = err
			default:
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, summary, err
	}

	results := make([]T, 0, len(strategies))
	for i, outcome := range outcomes {
		switch {
		case outcome == nil:
			results = append(results, slots[i])
			summary.Succeeded++
		case errors.Is(outcome, ErrSkip):
			summary.Skipped++
		default:
			summary.NotFound++
		}
	}
	return results, summary, nil
}

// SkipAlreadyExists turns an "already exists" failure into a skipped outcome,
// so that a create colliding with a persisted resource is not an error.
func SkipAlreadyExists[T any](strategy Strategy[T]) Strategy[T] {
	return func(ctx context.Context) (T, error) {
		v, err := strategy(ctx)
		if clienterrors.IsAlreadyExists(err) {
			var zero T
			return zero, errors.Wrap(ErrSkip, err.Error())
		}
		return v, err
	}
}
