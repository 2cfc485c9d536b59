// Package batch fans a multi-object delete out into independent deletes
// and folds the outcomes into one result.
package batch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
)

//go:generate mockgen -destination=mock_deleter_test.go -package=batch . Deleter

// DefaultConcurrency bounds in-flight deletes when none is configured.
const DefaultConcurrency = 8

// Deleter deletes one object.
type Deleter interface {
	Delete(ctx context.Context, collectionID, objectID string, deleteNonEmpty bool) error
}

// Params describes one batch. ParentID is the directory the ids were
// selected in ("" for the root) and scopes the tree patch.
type Params struct {
	CollectionID   string
	ParentID       string
	IDs            []string
	DeleteNonEmpty bool
}

// Key identifies the batch for stale-result checks.
func (p Params) Key() string {
	return p.CollectionID + "/" + p.ParentID + ":" + strings.Join(p.IDs, ",")
}

// Coordinator runs batch deletes.
type Coordinator struct {
	deleter     Deleter
	concurrency int
	logger      *slog.Logger
}

// NewCoordinator creates a Coordinator running at most concurrency
// deletes at once.
func NewCoordinator(deleter Deleter, concurrency int, logger *slog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Coordinator{deleter: deleter, concurrency: concurrency, logger: logger}
}

// Delete removes every id independently. A failure never cancels its
// siblings. With no failures it returns all ids. Otherwise it returns a
// *errors.BatchDeleteError whose Deleted lists the ids that did go, in
// request order, so callers can prune local state.
func (c *Coordinator) Delete(ctx context.Context, p Params) ([]string, error) {
	ids := lo.Uniq(p.IDs)
	results := make([]error, len(ids))

	var g errgroup.Group

	g.SetLimit(c.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			results[i] = c.deleter.Delete(ctx, p.CollectionID, id, p.DeleteNonEmpty)
			return nil
		})
	}

	_ = g.Wait()

	var (
		deleted  []string
		failures []apperrors.DeleteFailure
	)

	for i, id := range ids {
		if err := results[i]; err != nil {
			failures = append(failures, apperrors.DeleteFailure{ID: id, Err: err})
			continue
		}

		deleted = append(deleted, id)
	}

	if len(failures) == 0 {
		c.logger.Info("batch delete complete",
			slog.String("collection_id", p.CollectionID),
			slog.Int("deleted", len(deleted)),
		)

		return deleted, nil
	}

	c.logger.Warn("batch delete partially failed",
		slog.String("collection_id", p.CollectionID),
		slog.Int("deleted", len(deleted)),
		slog.Int("failed", len(failures)),
	)

	return deleted, &apperrors.BatchDeleteError{Deleted: deleted, Errors: failures}
}

// ConfirmedDeleted returns the ids of p that are known to be gone after a
// batch finished with err. On success that is every requested id. On a
// partial failure it is the requested ids filtered by the error's Deleted
// list, so ids the error reports but the request never named are dropped.
func ConfirmedDeleted(p Params, err error) []string {
	if err == nil {
		return lo.Uniq(p.IDs)
	}

	be, ok := apperrors.AsBatchDelete(err)
	if !ok {
		return nil
	}

	return lo.Filter(lo.Uniq(p.IDs), func(id string, _ int) bool {
		return lo.Contains(be.Deleted, id)
	})
}
