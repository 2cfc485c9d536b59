package explorer

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/sealbox/internal/async"
	"github.com/alexjbarnes/sealbox/internal/crypto"
	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/explorer/explorertest"
	"github.com/alexjbarnes/sealbox/internal/keys"
	"github.com/alexjbarnes/sealbox/internal/models"
	"github.com/alexjbarnes/sealbox/internal/payload"
	"github.com/alexjbarnes/sealbox/internal/state"
)

const (
	testEmail    = explorertest.Email
	testPassword = explorertest.Password
	testColl     = explorertest.CollectionID
)

var _ Remote = (*explorertest.Remote)(nil)

func testState(t *testing.T) *state.State {
	t.Helper()
	s, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"), 50)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newExplorer(t *testing.T, remote *explorertest.Remote, st *state.State, opts Options) *Explorer {
	t.Helper()
	e := New(remote, crypto.NewNative(), st, opts)
	t.Cleanup(e.Close)
	return e
}

// loggedIn returns an explorer unlocked with testColl active.
func loggedIn(t *testing.T, opts Options) (*Explorer, *explorertest.Remote, *state.State) {
	t.Helper()
	ctx := context.Background()

	remote := explorertest.NewRemote(t)
	st := testState(t)
	e := newExplorer(t, remote, st, opts)

	require.NoError(t, e.Login(ctx, testEmail, testPassword))
	_, err := e.UseCollection(ctx, testColl)
	require.NoError(t, err)
	require.Equal(t, keys.CollectionKeyReady, e.Keys().State())

	return e, remote, st
}

func childIDs(e *Explorer) []string {
	return lo.Map(e.Tree().Cell().Data.Children, func(u models.Unit, _ int) string { return u.UnitID() })
}

func childNames(e *Explorer) []string {
	return lo.Map(e.Tree().Cell().Data.Children, func(u models.Unit, _ int) string { return u.UnitName() })
}

// --- Login / collections ---

func TestLogin_WrongPasswordStaysLocked(t *testing.T) {
	e := newExplorer(t, explorertest.NewRemote(t), testState(t), Options{})

	err := e.Login(context.Background(), testEmail, "wrong")
	assert.ErrorIs(t, err, apperrors.ErrKeypairNotReady)
	assert.Equal(t, keys.Locked, e.Keys().State())
}

func TestLogin_ResolvesPreferredCollection(t *testing.T) {
	ctx := context.Background()
	remote := explorertest.NewRemote(t)
	st := testState(t)
	require.NoError(t, st.SetPreferredCollection(testColl))

	e := newExplorer(t, remote, st, Options{})
	require.NoError(t, e.Login(ctx, "  someone@example.com ", testPassword))

	assert.Equal(t, testColl, e.ActiveCollection())
	assert.Equal(t, keys.CollectionKeyReady, e.Keys().State())
}

func TestLogin_LogsPreferredCollectionKeyFailure(t *testing.T) {
	ctx := context.Background()
	remote := explorertest.NewRemote(t)
	st := testState(t)

	var logs bytes.Buffer
	e := newExplorer(t, remote, st, Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	require.NoError(t, e.Login(ctx, testEmail, testPassword))
	require.Empty(t, e.ActiveCollection())

	// Unlocked with nothing active: the stored preference is resolved
	// eagerly and the missing key must be reported, not dropped.
	require.NoError(t, st.SetPreferredCollection("nope"))
	require.NoError(t, e.Login(ctx, testEmail, testPassword))

	assert.Equal(t, "nope", e.ActiveCollection())
	assert.Equal(t, keys.KeypairReady, e.Keys().State())
	assert.Contains(t, logs.String(), "restoring preferred collection")
	assert.Contains(t, logs.String(), "collection_id=nope")
}

func TestUseCollection_PersistsPreference(t *testing.T) {
	_, _, st := loggedIn(t, Options{})

	id, err := st.PreferredCollection()
	require.NoError(t, err)
	assert.Equal(t, testColl, id)
}

func TestUseCollection_Unknown(t *testing.T) {
	e, _, st := loggedIn(t, Options{})

	_, err := e.UseCollection(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrCollectionNotFound)
	assert.Equal(t, testColl, e.ActiveCollection())

	id, err := st.PreferredCollection()
	require.NoError(t, err)
	assert.Equal(t, testColl, id)
}

func TestCollections(t *testing.T) {
	e, _, _ := loggedIn(t, Options{})

	cs, err := e.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "Main", cs[0].Name)
}

// --- Mutations keep the tree in step ---

func TestUploadAndCreate_KeepSortedTree(t *testing.T) {
	ctx := context.Background()
	e, _, _ := loggedIn(t, Options{})

	_, err := e.Browse(ctx, "")
	require.NoError(t, err)

	_, err = e.Upload(ctx, "", "b.txt", "text/plain", []byte("b"))
	require.NoError(t, err)
	_, err = e.Upload(ctx, "", "A.txt", "text/plain", []byte("a"))
	require.NoError(t, err)
	_, err = e.CreateDirectory(ctx, "", "zeta")
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "A.txt", "b.txt"}, childNames(e))
}

func TestUploadThenDownload(t *testing.T) {
	ctx := context.Background()
	e, _, _ := loggedIn(t, Options{})

	f, err := e.Upload(ctx, "", "note.md", "text/markdown", []byte("# secret"))
	require.NoError(t, err)

	dl, err := e.Download(ctx, f.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("# secret"), dl.Data)
	assert.Equal(t, "note.md", dl.Name)
}

func TestUpload_TooLargeMakesNoRequest(t *testing.T) {
	e, remote, _ := loggedIn(t, Options{Pipeline: payload.Options{MaxEncryptedSize: 16}})

	_, err := e.Upload(context.Background(), "", "big", "", make([]byte, 64))
	assert.Equal(t, apperrors.EncryptedFileTooLarge, apperrors.KindOf(err))
	assert.Equal(t, 0, remote.Calls("CreateFile"))
}

func TestCreateDirectory_StaleScopeIgnored(t *testing.T) {
	ctx := context.Background()
	e, _, _ := loggedIn(t, Options{})

	p, err := e.CreateDirectory(ctx, "", "P")
	require.NoError(t, err)

	_, err = e.Browse(ctx, p.ID)
	require.NoError(t, err)

	_, err = e.CreateDirectory(ctx, "", "elsewhere")
	require.NoError(t, err)
	assert.Empty(t, childIDs(e))

	_, err = e.CreateDirectory(ctx, p.ID, "inside")
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, childNames(e))
}

func TestRename_ReordersChild(t *testing.T) {
	ctx := context.Background()
	e, _, _ := loggedIn(t, Options{})

	var cID string
	for _, name := range []string{"A", "B", "C"} {
		f, err := e.Upload(ctx, "", name, "", []byte(name))
		require.NoError(t, err)
		cID = f.ID
	}

	_, err := e.Browse(ctx, "")
	require.NoError(t, err)

	_, err = e.Rename(ctx, cID, "0first")
	require.NoError(t, err)
	assert.Equal(t, []string{"0first", "A", "B"}, childNames(e))
}

func TestUpdateFile(t *testing.T) {
	ctx := context.Background()
	e, remote, _ := loggedIn(t, Options{})

	f, err := e.Upload(ctx, "", "a.txt", "text/plain", []byte("v1"))
	require.NoError(t, err)

	_, err = e.Browse(ctx, "")
	require.NoError(t, err)

	_, err = e.UpdateFile(ctx, f.ID, []byte("v1"))
	assert.ErrorIs(t, err, apperrors.ErrFileContentNotChanged)
	assert.Equal(t, 0, remote.Calls("UploadVersion"))

	updated, err := e.UpdateFile(ctx, f.ID, []byte("v2"))
	require.NoError(t, err)
	assert.NotEqual(t, f.VersionID, updated.VersionID)

	child, ok := e.Tree().Cell().Data.Child(f.ID)
	require.True(t, ok)
	assert.Equal(t, updated.VersionID, child.(models.FileMetadata).VersionID)

	dl, err := e.Download(ctx, f.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), dl.Data)
}

func TestUpdateFile_FallsBackToRemoteMetadata(t *testing.T) {
	ctx := context.Background()
	e, remote, _ := loggedIn(t, Options{})

	f, err := e.Upload(ctx, "", "a.txt", "", []byte("one"))
	require.NoError(t, err)

	_, err = e.UpdateFile(ctx, f.ID, []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, 1, remote.Calls("GetMetadata"))
}

func TestUpdateVersion_UnchangedMakesNoRequest(t *testing.T) {
	ctx := context.Background()
	e, remote, _ := loggedIn(t, Options{})

	f, err := e.Upload(ctx, "", "a.txt", "", []byte("same"))
	require.NoError(t, err)

	_, err = e.UpdateVersion(ctx, f, []byte("same"))
	assert.ErrorIs(t, err, apperrors.ErrFileContentNotChanged)
	assert.Equal(t, 0, remote.Calls("GetMetadata"))
	assert.Equal(t, 0, remote.Calls("UploadVersion"))

	updated, err := e.UpdateVersion(ctx, f, []byte("changed"))
	require.NoError(t, err)
	assert.NotEqual(t, f.VersionID, updated.VersionID)
	assert.Equal(t, 1, remote.Calls("UploadVersion"))
}

func TestUpdateFile_UncachedUnchangedFetchesMetadataOnly(t *testing.T) {
	ctx := context.Background()
	e, remote, _ := loggedIn(t, Options{})

	f, err := e.Upload(ctx, "", "a.txt", "", []byte("same"))
	require.NoError(t, err)

	_, err = e.UpdateFile(ctx, f.ID, []byte("same"))
	assert.ErrorIs(t, err, apperrors.ErrFileContentNotChanged)
	assert.Equal(t, 1, remote.Calls("GetMetadata"))
	assert.Equal(t, 0, remote.Calls("UploadVersion"))
}

func TestUpdateFile_Directory(t *testing.T) {
	ctx := context.Background()
	e, _, _ := loggedIn(t, Options{})

	d, err := e.CreateDirectory(ctx, "", "dir")
	require.NoError(t, err)

	_, err = e.UpdateFile(ctx, d.ID, []byte("x"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}

// --- Partial batch delete ---

func TestDeleteSelection_PartialFailurePrunesTreeAndSelection(t *testing.T) {
	ctx := context.Background()
	e, remote, _ := loggedIn(t, Options{})

	p, err := e.CreateDirectory(ctx, "", "P")
	require.NoError(t, err)

	ids := make(map[string]string)
	for _, name := range []string{"A", "B", "C"} {
		f, err := e.Upload(ctx, p.ID, name, "", []byte(name))
		require.NoError(t, err)
		ids[name] = f.ID
	}

	tr, err := e.Browse(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tr.Children, 3)
	e.Selection().Add(tr.Children...)

	remote.FailDelete(ids["B"], apperrors.New(apperrors.RecursivelyDelete, "delete"))

	deleted, err := e.DeleteSelection(ctx, p.ID, false)
	require.Error(t, err)
	assert.Equal(t, []string{ids["A"], ids["C"]}, deleted)

	be, ok := apperrors.AsBatchDelete(err)
	require.True(t, ok)
	assert.Equal(t, []string{ids["A"], ids["C"]}, be.Deleted)
	require.Len(t, be.Errors, 1)
	assert.Equal(t, ids["B"], be.Errors[0].ID)

	assert.Equal(t, async.Finished, e.Tree().Cell().Status)
	assert.Equal(t, []string{ids["B"]}, childIDs(e))
	assert.Equal(t, []string{ids["B"]}, e.Selection().IDs())
}

func TestDelete_SuccessPrunes(t *testing.T) {
	ctx := context.Background()
	e, _, _ := loggedIn(t, Options{})

	f, err := e.Upload(ctx, "", "gone", "", []byte("x"))
	require.NoError(t, err)

	_, err = e.Browse(ctx, "")
	require.NoError(t, err)
	e.Selection().Add(f)

	deleted, err := e.Delete(ctx, "", []string{f.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{f.ID}, deleted)
	assert.Empty(t, childIDs(e))
	assert.Equal(t, 0, e.Selection().Len())
}

func TestDeleteSelection_Empty(t *testing.T) {
	e, remote, _ := loggedIn(t, Options{})

	deleted, err := e.DeleteSelection(context.Background(), "", false)
	require.NoError(t, err)
	assert.Nil(t, deleted)
	assert.Equal(t, 0, remote.Calls("Delete"))
}

// --- History ---

func TestHistory_RecordsRedactedParams(t *testing.T) {
	ctx := context.Background()
	e, _, st := loggedIn(t, Options{})
	acc := explorertest.LoadAccount(t)

	f, err := e.Upload(ctx, "", "diary.txt", "", []byte("plaintext-marker"))
	require.NoError(t, err)

	_, err = e.Download(ctx, f.ID, "")
	require.NoError(t, err)

	_, err = e.UpdateFile(ctx, f.ID, []byte("plaintext-marker"))
	require.Error(t, err)

	hist, err := st.History(0)
	require.NoError(t, err)
	require.Len(t, hist, 3)

	assert.Equal(t, "upload_version", hist[0].Operation)
	assert.Equal(t, "failed", hist[0].Outcome)
	assert.Equal(t, "FileContentNotChanged", hist[0].ErrorKind)
	assert.Equal(t, "download", hist[1].Operation)
	assert.Equal(t, "upload_file", hist[2].Operation)
	assert.Equal(t, "done", hist[2].Outcome)

	for _, rec := range hist {
		assert.NotEmpty(t, rec.RequestID)
		assert.False(t, strings.Contains(string(rec.Params), acc.CollectionKey), "collection key leaked into %s", rec.Operation)
		assert.NotContains(t, string(rec.Params), "plaintext-marker")
	}
}

// --- Logout ---

func TestLogout_TearsDownEverything(t *testing.T) {
	ctx := context.Background()
	e, _, st := loggedIn(t, Options{})

	_, err := e.Browse(ctx, "")
	require.NoError(t, err)

	require.NoError(t, e.Logout(ctx))

	assert.Equal(t, keys.Locked, e.Keys().State())
	assert.Equal(t, "", e.ActiveCollection())
	assert.Equal(t, async.NotStarted, e.Tree().Cell().Status)

	id, err := st.PreferredCollection()
	require.NoError(t, err)
	assert.Equal(t, "", id)

	_, err = e.Upload(ctx, "", "x", "", []byte("x"))
	assert.ErrorIs(t, err, apperrors.ErrCollectionNotFound)

	_, err = e.Keys().CollectionKey(testColl)
	assert.ErrorIs(t, err, apperrors.ErrKeypairNotReady)
}

func TestNilStore(t *testing.T) {
	ctx := context.Background()
	e := New(explorertest.NewRemote(t), crypto.NewNative(), nil, Options{})
	defer e.Close()

	require.NoError(t, e.Login(ctx, testEmail, testPassword))
	_, err := e.UseCollection(ctx, testColl)
	require.NoError(t, err)

	_, err = e.Upload(ctx, "", "x", "", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, e.Logout(ctx))
}
