// Package tree caches one neighbourhood of the remote filesystem and keeps
// it consistent with local mutations without refetching.
package tree

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/sealbox/internal/models"
)

// Kind is the shape of an ObjectTree.
type Kind int

const (
	KindRoot Kind = iota
	KindDirectory
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Scope names the neighbourhood: a collection and a focus unit. An empty
// FocusID is the collection root.
type Scope struct {
	CollectionID string
	FocusID      string
}

// Key identifies the scope for stale-result checks.
func (s Scope) Key() string {
	return s.CollectionID + "/" + s.FocusID
}

// ObjectTree is the cached neighbourhood. Root trees have no Metadata or
// Parents. File trees have no Children. Parents are nearest first.
// Children are always directories first, then case-insensitive name order.
type ObjectTree struct {
	Kind     Kind
	Metadata models.Unit
	Parents  []models.DirectoryMetadata
	Children []models.Unit
}

// FocusID returns the id of the focus unit, or "" for the root.
func (t ObjectTree) FocusID() string {
	if t.Metadata == nil {
		return ""
	}

	return t.Metadata.UnitID()
}

// Child returns the child with id.
func (t ObjectTree) Child(id string) (models.Unit, bool) {
	return lo.Find(t.Children, func(u models.Unit) bool { return u.UnitID() == id })
}

// Remote is the subset of the API client needed to load a tree.
type Remote interface {
	GetMetadata(ctx context.Context, collectionID, objectID string) (models.Unit, error)
	GetParents(ctx context.Context, collectionID, objectID string) ([]models.DirectoryMetadata, error)
	GetChildren(ctx context.Context, collectionID, objectID string) ([]models.Unit, error)
}

// Load fetches the neighbourhood named by scope.
func Load(ctx context.Context, remote Remote, scope Scope) (ObjectTree, error) {
	if scope.FocusID == "" {
		children, err := remote.GetChildren(ctx, scope.CollectionID, "")
		if err != nil {
			return ObjectTree{}, fmt.Errorf("loading root: %w", err)
		}

		return ObjectTree{Kind: KindRoot, Children: sorted(children)}, nil
	}

	var (
		meta    models.Unit
		parents []models.DirectoryMetadata
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		meta, err = remote.GetMetadata(gctx, scope.CollectionID, scope.FocusID)

		return err
	})

	g.Go(func() error {
		var err error
		parents, err = remote.GetParents(gctx, scope.CollectionID, scope.FocusID)

		return err
	})

	if err := g.Wait(); err != nil {
		return ObjectTree{}, fmt.Errorf("loading %s: %w", scope.FocusID, err)
	}

	if meta.UnitType() == models.TypeFile {
		return ObjectTree{Kind: KindFile, Metadata: meta, Parents: parents}, nil
	}

	children, err := remote.GetChildren(ctx, scope.CollectionID, scope.FocusID)
	if err != nil {
		return ObjectTree{}, fmt.Errorf("loading children of %s: %w", scope.FocusID, err)
	}

	return ObjectTree{Kind: KindDirectory, Metadata: meta, Parents: parents, Children: sorted(children)}, nil
}

// sortKey orders directories before files, then by lowercased name.
func sortKey(u models.Unit) string {
	prefix := "f_"
	if u.UnitType() == models.TypeDirectory {
		prefix = "d_"
	}

	return prefix + strings.ToLower(u.UnitName())
}

func sorted(units []models.Unit) []models.Unit {
	out := slices.Clone(units)
	slices.SortStableFunc(out, func(a, b models.Unit) int {
		return strings.Compare(sortKey(a), sortKey(b))
	})

	return out
}

// insertSorted returns a new slice with u placed by binary search on its
// sort key. Equal keys keep insertion order.
func insertSorted(children []models.Unit, u models.Unit) []models.Unit {
	key := sortKey(u)
	i := sort.Search(len(children), func(i int) bool {
		return sortKey(children[i]) > key
	})

	out := make([]models.Unit, 0, len(children)+1)
	out = append(out, children[:i]...)
	out = append(out, u)

	return append(out, children[i:]...)
}

func withoutIDs(children []models.Unit, ids ...string) []models.Unit {
	return lo.Reject(children, func(u models.Unit, _ int) bool {
		return lo.Contains(ids, u.UnitID())
	})
}

// IsSorted reports whether children satisfy the display order.
func IsSorted(children []models.Unit) bool {
	return slices.IsSortedFunc(children, func(a, b models.Unit) int {
		return strings.Compare(sortKey(a), sortKey(b))
	})
}
