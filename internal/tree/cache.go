package tree

import (
	"context"
	"log/slog"

	"github.com/alexjbarnes/sealbox/internal/async"
	"github.com/alexjbarnes/sealbox/internal/models"
)

// Cache holds the current neighbourhood in an async cell. Loads go
// through an Operation so the cell follows the usual lifecycle and late
// loads for an abandoned scope are dropped.
//
// The Apply methods patch the cached tree in place of a refetch. Each one
// is a no-op unless the cell is Finished and the mutation belongs to the
// cached scope.
type Cache struct {
	loads   *async.Operation[Scope, ObjectTree]
	tracker *async.Tracker[Scope, ObjectTree]
	logger  *slog.Logger
}

// NewCache creates an empty cache loading through remote.
func NewCache(remote Remote, opts async.Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	loads := async.NewOperation("load_tree", func(ctx context.Context, s Scope) (ObjectTree, error) {
		return Load(ctx, remote, s)
	}, opts)

	return &Cache{
		loads:   loads,
		tracker: async.Track(loads, nil),
		logger:  logger,
	}
}

// Operation exposes the load orchestrator for subscribers.
func (c *Cache) Operation() *async.Operation[Scope, ObjectTree] {
	return c.loads
}

// Load switches the cache to scope and waits for the result.
func (c *Cache) Load(ctx context.Context, scope Scope) (ObjectTree, error) {
	return c.loads.Run(ctx, scope)
}

// StartLoad switches the cache to scope without waiting.
func (c *Cache) StartLoad(ctx context.Context, scope Scope) <-chan async.Completion[Scope, ObjectTree] {
	return c.loads.Start(ctx, scope)
}

// Cell returns the current snapshot.
func (c *Cache) Cell() async.Cell[Scope, ObjectTree] {
	return c.tracker.Cell()
}

// Reset forgets the cached neighbourhood.
func (c *Cache) Reset() {
	c.tracker.Reset()
}

// Close detaches the cache from its load operation.
func (c *Cache) Close() {
	c.tracker.Close()
}

// patch applies fn when the cell is Finished for collectionID and
// inScope accepts the cached tree.
func (c *Cache) patch(event, collectionID string, inScope func(Scope, ObjectTree) bool, fn func(ObjectTree) (ObjectTree, bool)) bool {
	applied := false

	c.tracker.Update(func(cell async.Cell[Scope, ObjectTree]) (async.Cell[Scope, ObjectTree], bool) {
		if cell.Status != async.Finished || cell.Params.CollectionID != collectionID {
			return cell, false
		}

		if !inScope(cell.Params, cell.Data) {
			return cell, false
		}

		next, changed := fn(cell.Data)
		if !changed {
			return cell, false
		}

		applied = true

		return cell.Finish(cell.Params, next), true
	})

	if !applied {
		c.logger.Debug("tree patch ignored",
			slog.String("event", event),
			slog.String("collection_id", collectionID),
		)
	}

	return applied
}

func focusIs(id string) func(Scope, ObjectTree) bool {
	return func(s Scope, t ObjectTree) bool {
		return s.FocusID == id && t.Kind != KindFile
	}
}

// containsUnit accepts trees where id is the focus or a child.
func containsUnit(id string) func(Scope, ObjectTree) bool {
	return func(s Scope, t ObjectTree) bool {
		if s.FocusID == id {
			return true
		}

		_, ok := t.Child(id)

		return ok
	}
}

// ApplyCreated inserts a unit created under parentID ("" for the root).
func (c *Cache) ApplyCreated(collectionID, parentID string, u models.Unit) bool {
	return c.patch("created", collectionID, focusIs(parentID), func(t ObjectTree) (ObjectTree, bool) {
		if _, dup := t.Child(u.UnitID()); dup {
			t.Children = withoutIDs(t.Children, u.UnitID())
		}

		t.Children = insertSorted(t.Children, u)

		return t, true
	})
}

// ApplyRenamed renames the focus in place, or moves a renamed child to
// its new position.
func (c *Cache) ApplyRenamed(collectionID, id, name string) bool {
	return c.patch("renamed", collectionID, containsUnit(id), func(t ObjectTree) (ObjectTree, bool) {
		if t.FocusID() == id {
			t.Metadata = models.WithName(t.Metadata, name)
			return t, true
		}

		child, ok := t.Child(id)
		if !ok {
			return t, false
		}

		t.Children = insertSorted(withoutIDs(t.Children, id), models.WithName(child, name))

		return t, true
	})
}

// ApplyDeleted removes the confirmed-deleted ids from a tree focused on
// parentID.
func (c *Cache) ApplyDeleted(collectionID, parentID string, deleted []string) bool {
	return c.patch("deleted", collectionID, focusIs(parentID), func(t ObjectTree) (ObjectTree, bool) {
		next := withoutIDs(t.Children, deleted...)
		if len(next) == len(t.Children) {
			return t, false
		}

		t.Children = next

		return t, true
	})
}

// ApplyVersion replaces the metadata of a file that received a new
// version, either the focus file or a child.
func (c *Cache) ApplyVersion(collectionID string, file models.FileMetadata) bool {
	return c.patch("version", collectionID, containsUnit(file.ID), func(t ObjectTree) (ObjectTree, bool) {
		if t.FocusID() == file.ID {
			t.Metadata = file
			return t, true
		}

		if _, ok := t.Child(file.ID); !ok {
			return t, false
		}

		t.Children = insertSorted(withoutIDs(t.Children, file.ID), file)

		return t, true
	})
}
