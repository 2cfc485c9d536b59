package tree

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/sealbox/internal/async"
	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

type fakeRemote struct {
	mu       sync.Mutex
	meta     map[string]models.Unit
	parents  map[string][]models.DirectoryMetadata
	children map[string][]models.Unit
	calls    []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		meta:     make(map[string]models.Unit),
		parents:  make(map[string][]models.DirectoryMetadata),
		children: make(map[string][]models.Unit),
	}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRemote) GetMetadata(_ context.Context, _, id string) (models.Unit, error) {
	f.record("metadata:" + id)

	u, ok := f.meta[id]
	if !ok {
		return nil, apperrors.New(apperrors.FileNotFound, "get metadata")
	}

	return u, nil
}

func (f *fakeRemote) GetParents(_ context.Context, _, id string) ([]models.DirectoryMetadata, error) {
	f.record("parents:" + id)
	return f.parents[id], nil
}

func (f *fakeRemote) GetChildren(_ context.Context, _, id string) ([]models.Unit, error) {
	f.record("children:" + id)
	return f.children[id], nil
}

func dir(id, name string) models.DirectoryMetadata {
	return models.DirectoryMetadata{ID: id, CollectionID: "c1", Name: name}
}

func file(id, name string) models.FileMetadata {
	return models.FileMetadata{ID: id, CollectionID: "c1", Name: name}
}

func names(units []models.Unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.UnitName())
	}

	return out
}

func loadedCache(t *testing.T, remote *fakeRemote, scope Scope) *Cache {
	t.Helper()

	c := NewCache(remote, async.Options{})
	t.Cleanup(c.Close)

	_, err := c.Load(context.Background(), scope)
	require.NoError(t, err)
	require.Equal(t, async.Finished, c.Cell().Status)

	return c
}

func TestLoad_RootSortsDirectoriesFirst(t *testing.T) {
	remote := newFakeRemote()
	remote.children[""] = []models.Unit{file("f1", "b.txt"), dir("d1", "Zeta"), file("f2", "A.txt"), dir("d2", "alpha")}

	tr, err := Load(context.Background(), remote, Scope{CollectionID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, KindRoot, tr.Kind)
	assert.Nil(t, tr.Metadata)
	assert.Equal(t, []string{"alpha", "Zeta", "A.txt", "b.txt"}, names(tr.Children))
}

func TestLoad_Directory(t *testing.T) {
	remote := newFakeRemote()
	remote.meta["d1"] = dir("d1", "Docs")
	remote.parents["d1"] = []models.DirectoryMetadata{dir("p1", "Parent")}
	remote.children["d1"] = []models.Unit{file("f1", "x")}

	tr, err := Load(context.Background(), remote, Scope{CollectionID: "c1", FocusID: "d1"})
	require.NoError(t, err)

	assert.Equal(t, KindDirectory, tr.Kind)
	assert.Equal(t, "d1", tr.FocusID())
	require.Len(t, tr.Parents, 1)
	assert.Equal(t, "p1", tr.Parents[0].ID)
	assert.Len(t, tr.Children, 1)
}

func TestLoad_FileSkipsChildren(t *testing.T) {
	remote := newFakeRemote()
	remote.meta["f1"] = file("f1", "x")

	tr, err := Load(context.Background(), remote, Scope{CollectionID: "c1", FocusID: "f1"})
	require.NoError(t, err)

	assert.Equal(t, KindFile, tr.Kind)
	assert.Nil(t, tr.Children)
	assert.NotContains(t, remote.calls, "children:f1")
}

func TestLoad_NotFound(t *testing.T) {
	c := NewCache(newFakeRemote(), async.Options{})
	defer c.Close()

	_, err := c.Load(context.Background(), Scope{CollectionID: "c1", FocusID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
	assert.Equal(t, async.Failed, c.Cell().Status)
}

func TestApplyCreated_InsertsInOrder(t *testing.T) {
	remote := newFakeRemote()
	remote.children[""] = []models.Unit{dir("d1", "b"), file("f1", "c")}
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	require.True(t, c.ApplyCreated("c1", "", dir("d2", "A")))
	require.True(t, c.ApplyCreated("c1", "", file("f2", "a")))
	require.True(t, c.ApplyCreated("c1", "", dir("d3", "z")))

	children := c.Cell().Data.Children
	assert.Equal(t, []string{"A", "b", "z", "a", "c"}, names(children))
	assert.True(t, IsSorted(children))
}

func TestApplyCreated_StaleScopeIgnored(t *testing.T) {
	remote := newFakeRemote()
	remote.meta["F1"] = dir("F1", "one")
	remote.children["F1"] = []models.Unit{file("f1", "x")}
	c := loadedCache(t, remote, Scope{CollectionID: "X", FocusID: "F1"})

	before := c.Cell()

	assert.False(t, c.ApplyCreated("X", "F2", dir("d9", "new")))
	assert.False(t, c.ApplyCreated("Y", "F1", dir("d9", "new")))
	assert.Equal(t, before, c.Cell())
}

func TestApply_IgnoredUnlessFinished(t *testing.T) {
	c := NewCache(newFakeRemote(), async.Options{})
	defer c.Close()

	assert.False(t, c.ApplyCreated("c1", "", dir("d1", "a")))
	assert.Equal(t, async.NotStarted, c.Cell().Status)
}

func TestApplyRenamed_ChildMoves(t *testing.T) {
	remote := newFakeRemote()
	remote.children[""] = []models.Unit{file("f1", "a"), file("f2", "m"), file("f3", "z")}
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	require.True(t, c.ApplyRenamed("c1", "f1", "zz"))

	assert.Equal(t, []string{"m", "z", "zz"}, names(c.Cell().Data.Children))
}

func TestApplyRenamed_FocusPatchedInPlace(t *testing.T) {
	remote := newFakeRemote()
	remote.meta["d1"] = dir("d1", "old")
	remote.parents["d1"] = []models.DirectoryMetadata{dir("p1", "P")}
	remote.children["d1"] = []models.Unit{file("f2", "b"), file("f1", "a")}
	c := loadedCache(t, remote, Scope{CollectionID: "c1", FocusID: "d1"})

	require.True(t, c.ApplyRenamed("c1", "d1", "new"))

	tr := c.Cell().Data
	assert.Equal(t, "new", tr.Metadata.UnitName())
	assert.Equal(t, []string{"a", "b"}, names(tr.Children))
	assert.Equal(t, "P", tr.Parents[0].Name)
}

func TestApplyRenamed_UnknownIDIgnored(t *testing.T) {
	remote := newFakeRemote()
	remote.children[""] = []models.Unit{file("f1", "a")}
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	assert.False(t, c.ApplyRenamed("c1", "nope", "x"))
}

func TestApplyDeleted_RemovesOnlyConfirmedIDs(t *testing.T) {
	remote := newFakeRemote()
	remote.children[""] = []models.Unit{file("A", "a"), file("B", "b"), file("C", "c")}
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	require.True(t, c.ApplyDeleted("c1", "", []string{"A", "C"}))

	assert.Equal(t, []string{"b"}, names(c.Cell().Data.Children))
}

func TestApplyVersion_ChildAndFocus(t *testing.T) {
	remote := newFakeRemote()
	remote.children[""] = []models.Unit{file("f1", "a"), file("f2", "b")}
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	updated := file("f1", "a")
	updated.VersionID = "v2"
	require.True(t, c.ApplyVersion("c1", updated))

	child, ok := c.Cell().Data.Child("f1")
	require.True(t, ok)
	assert.Equal(t, "v2", child.(models.FileMetadata).VersionID)

	remote.meta["f2"] = file("f2", "b")
	_, err := c.Load(context.Background(), Scope{CollectionID: "c1", FocusID: "f2"})
	require.NoError(t, err)

	focus := file("f2", "b")
	focus.VersionID = "v9"
	require.True(t, c.ApplyVersion("c1", focus))
	assert.Equal(t, "v9", c.Cell().Data.Metadata.(models.FileMetadata).VersionID)
}

func TestPatches_KeepSortInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	remote := newFakeRemote()
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	letters := []string{"a", "B", "c", "D", "e", "f", "G"}
	next := 0

	for step := 0; step < 500; step++ {
		children := c.Cell().Data.Children

		switch op := rng.IntN(4); {
		case op == 0 || len(children) == 0:
			next++
			id := fmt.Sprintf("u%d", next)
			name := letters[rng.IntN(len(letters))] + fmt.Sprint(rng.IntN(3))

			var u models.Unit = file(id, name)
			if rng.IntN(2) == 0 {
				u = dir(id, name)
			}

			c.ApplyCreated("c1", "", u)
		case op == 1:
			victim := children[rng.IntN(len(children))]
			c.ApplyRenamed("c1", victim.UnitID(), letters[rng.IntN(len(letters))])
		case op == 2:
			victim := children[rng.IntN(len(children))]
			c.ApplyDeleted("c1", "", []string{victim.UnitID()})
		default:
			victim := children[rng.IntN(len(children))]
			if f, ok := victim.(models.FileMetadata); ok {
				f.VersionID = fmt.Sprint(step)
				c.ApplyVersion("c1", f)
			}
		}

		require.True(t, IsSorted(c.Cell().Data.Children), "step %d: %v", step, names(c.Cell().Data.Children))
	}
}

func TestReset(t *testing.T) {
	remote := newFakeRemote()
	c := loadedCache(t, remote, Scope{CollectionID: "c1"})

	c.Reset()
	assert.Equal(t, async.NotStarted, c.Cell().Status)
	assert.False(t, c.ApplyCreated("c1", "", dir("d", "x")))
}
