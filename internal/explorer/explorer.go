// Package explorer is the owned service behind every outer surface. It
// holds the key resolver, the tree cache and the selection set, runs each
// mutation through its async operation, and keeps the cache, selection
// and history in step with the completions.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/sealbox/internal/async"
	"github.com/alexjbarnes/sealbox/internal/batch"
	"github.com/alexjbarnes/sealbox/internal/crypto"
	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/files"
	"github.com/alexjbarnes/sealbox/internal/keys"
	"github.com/alexjbarnes/sealbox/internal/logging"
	"github.com/alexjbarnes/sealbox/internal/models"
	"github.com/alexjbarnes/sealbox/internal/payload"
	"github.com/alexjbarnes/sealbox/internal/selection"
	"github.com/alexjbarnes/sealbox/internal/state"
	"github.com/alexjbarnes/sealbox/internal/tree"
)

// Remote is everything the explorer needs from the API client.
type Remote interface {
	files.Remote
	tree.Remote
	keys.Remote
	batch.Deleter
	ListCollections(ctx context.Context) ([]models.Collection, error)
	GetCollection(ctx context.Context, collectionID string) (*models.Collection, error)
}

// Store is the durable state the explorer reads and writes.
type Store interface {
	PreferredCollection() (string, error)
	SetPreferredCollection(id string) error
	ClearPreferredCollection() error
	AppendHistory(rec state.Record) error
}

// Options configures an Explorer.
type Options struct {
	Logger            *slog.Logger
	Development       bool
	Pipeline          payload.Options
	DeleteConcurrency int
}

// Explorer wires the key hierarchy, operations and caches together.
type Explorer struct {
	remote   Remote
	provider crypto.Provider
	store    Store
	logger   *slog.Logger

	keys      *keys.Resolver
	tree      *tree.Cache
	selection *selection.Set
	pipeline  *payload.Pipeline

	createDir *async.Operation[files.CreateDirectoryParams, models.DirectoryMetadata]
	upload    *async.Operation[files.UploadParams, models.FileMetadata]
	version   *async.Operation[files.VersionParams, models.FileMetadata]
	rename    *async.Operation[files.RenameParams, models.Unit]
	remove    *async.Operation[batch.Params, []string]
	download  *async.Operation[files.DownloadParams, files.Download]

	unsubs []func()
}

// New creates an Explorer. store may be nil, in which case nothing is
// persisted.
func New(remote Remote, provider crypto.Provider, store Store, opts Options) *Explorer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pipeline := payload.NewPipeline(provider, opts.Pipeline)
	svc := files.NewService(remote, pipeline, logging.Component(logger, "files"))
	coord := batch.NewCoordinator(remote, opts.DeleteConcurrency, logging.Component(logger, "batch"))

	opOpts := async.Options{Logger: logging.Component(logger, "operations"), Development: opts.Development}

	e := &Explorer{
		remote:    remote,
		provider:  provider,
		store:     store,
		logger:    logging.Component(logger, "explorer"),
		keys:      keys.NewResolver(provider, remote, logging.Component(logger, "keys")),
		tree:      tree.NewCache(remote, async.Options{Logger: logging.Component(logger, "tree"), Development: opts.Development}),
		selection: selection.New(),
		pipeline:  pipeline,
		createDir: async.NewOperation("create_directory", svc.CreateDirectory, opOpts),
		upload:    async.NewOperation("upload_file", svc.UploadFile, opOpts),
		version:   async.NewOperation("upload_version", svc.UploadVersion, opOpts),
		rename:    async.NewOperation("rename", svc.Rename, opOpts),
		remove:    async.NewOperation("delete", coord.Delete, opOpts),
		download:  async.NewOperation("download", svc.Download, opOpts),
	}

	e.wire()

	return e
}

// wire subscribes the tree cache, the selection set and history to the
// operation completions.
func (e *Explorer) wire() {
	e.unsubs = append(e.unsubs,
		e.createDir.Subscribe(func(ev async.Event[files.CreateDirectoryParams, models.DirectoryMetadata]) {
			if ev.Phase == async.Done {
				e.tree.ApplyCreated(ev.Params.CollectionID, ev.Params.ParentID, ev.Result)
			}
		}),
		e.upload.Subscribe(func(ev async.Event[files.UploadParams, models.FileMetadata]) {
			if ev.Phase == async.Done {
				e.tree.ApplyCreated(ev.Params.CollectionID, ev.Params.ParentID, ev.Result)
			}
		}),
		e.rename.Subscribe(func(ev async.Event[files.RenameParams, models.Unit]) {
			if ev.Phase == async.Done {
				e.tree.ApplyRenamed(ev.Params.CollectionID, ev.Params.ID, ev.Result.UnitName())
			}
		}),
		e.version.Subscribe(func(ev async.Event[files.VersionParams, models.FileMetadata]) {
			if ev.Phase == async.Done {
				e.tree.ApplyVersion(ev.Params.CollectionID, ev.Result)
			}
		}),
		e.remove.Subscribe(e.onDelete),
	)

	e.unsubs = append(e.unsubs,
		recordHistory(e, e.createDir),
		recordHistory(e, e.upload),
		recordHistory(e, e.version),
		recordHistory(e, e.rename),
		recordHistory(e, e.remove),
		recordHistory(e, e.download),
	)
}

// onDelete prunes the cache and the selection. A failed batch still
// removes what it did delete: the cache uses the requested ids filtered
// by the failure's deleted list, the selection uses that list directly.
func (e *Explorer) onDelete(ev async.Event[batch.Params, []string]) {
	switch ev.Phase {
	case async.Done:
		e.tree.ApplyDeleted(ev.Params.CollectionID, ev.Params.ParentID, batch.ConfirmedDeleted(ev.Params, nil))
		e.selection.Prune(ev.Result...)
	case async.FailedPhase:
		be, ok := apperrors.AsBatchDelete(ev.Err)
		if !ok {
			return
		}

		e.tree.ApplyDeleted(ev.Params.CollectionID, ev.Params.ParentID, batch.ConfirmedDeleted(ev.Params, ev.Err))
		e.selection.Prune(be.Deleted...)
	}
}

// recordHistory appends a redacted record for every completion of op.
func recordHistory[P async.Params, R any](e *Explorer, op *async.Operation[P, R]) func() {
	return op.Subscribe(func(ev async.Event[P, R]) {
		if ev.Phase == async.Started || e.store == nil {
			return
		}

		rec := state.Record{
			RequestID: ev.RequestID,
			Operation: ev.Operation,
			Outcome:   ev.Phase.String(),
			At:        time.Now().UTC(),
		}

		if params, err := json.Marshal(ev.Params); err == nil {
			rec.Params = params
		}

		if ev.Err != nil {
			rec.Error = ev.Err.Error()
			rec.ErrorKind = apperrors.KindOf(ev.Err).String()
		}

		if err := e.store.AppendHistory(rec); err != nil {
			e.logger.Warn("recording history",
				slog.String("operation", ev.Operation),
				slog.String("error", err.Error()),
			)
		}
	})
}

// Keys exposes the key resolver.
func (e *Explorer) Keys() *keys.Resolver { return e.keys }

// Tree exposes the tree cache.
func (e *Explorer) Tree() *tree.Cache { return e.tree }

// Selection exposes the selection set.
func (e *Explorer) Selection() *selection.Set { return e.selection }

// Login unlocks the key hierarchy. The preferred collection, when one is
// stored, becomes the active collection and its key is resolved as part
// of the unlock.
func (e *Explorer) Login(ctx context.Context, email, password string) error {
	emailHash, err := crypto.EmailHash(ctx, e.provider, email)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if e.store != nil && e.keys.ActiveCollection() == "" {
		id, err := e.store.PreferredCollection()
		if err != nil {
			e.logger.Warn("reading preferred collection", slog.String("error", err.Error()))
		} else if id != "" {
			if err := e.keys.SetActiveCollection(ctx, id); err != nil {
				e.logger.Warn("restoring preferred collection",
					slog.String("collection_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if err := e.keys.Unlock(ctx, password, emailHash); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return nil
}

// Logout tears down every key, forgets the active and preferred
// collection and empties the caches.
func (e *Explorer) Logout(ctx context.Context) error {
	e.keys.Lock()

	if err := e.keys.SetActiveCollection(ctx, ""); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	e.tree.Reset()
	e.selection.Clear()

	if e.store == nil {
		return nil
	}

	if err := e.store.ClearPreferredCollection(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	e.logger.Info("logged out")

	return nil
}

// Collections lists the collections visible to the account.
func (e *Explorer) Collections(ctx context.Context) ([]models.Collection, error) {
	return e.remote.ListCollections(ctx)
}

// UseCollection makes collectionID the active collection, resolves its
// key and stores it as the preferred collection.
func (e *Explorer) UseCollection(ctx context.Context, collectionID string) (models.Collection, error) {
	c, err := e.remote.GetCollection(ctx, collectionID)
	if err != nil {
		return models.Collection{}, err
	}

	if c == nil {
		return models.Collection{}, apperrors.Newf(apperrors.CollectionNotFound, "use collection", "collection %s", collectionID)
	}

	e.tree.Reset()
	e.selection.Clear()

	if err := e.keys.SetActiveCollection(ctx, collectionID); err != nil {
		return *c, err
	}

	if e.store != nil {
		if err := e.store.SetPreferredCollection(collectionID); err != nil {
			e.logger.Warn("storing preferred collection", slog.String("error", err.Error()))
		}
	}

	return *c, nil
}

// ActiveCollection returns the active collection id.
func (e *Explorer) ActiveCollection() string {
	return e.keys.ActiveCollection()
}

func (e *Explorer) requireCollection(op string) (string, error) {
	id := e.keys.ActiveCollection()
	if id == "" {
		return "", apperrors.Newf(apperrors.CollectionNotFound, op, "no collection selected")
	}

	return id, nil
}

func (e *Explorer) requireKey(op string) (string, models.CollectionEncryptionKey, error) {
	id, err := e.requireCollection(op)
	if err != nil {
		return "", models.CollectionEncryptionKey{}, err
	}

	key, err := e.keys.CollectionKey(id)
	if err != nil {
		return "", models.CollectionEncryptionKey{}, err
	}

	return id, key, nil
}

// Browse loads the neighbourhood of focusID ("" for the root) into the
// tree cache.
func (e *Explorer) Browse(ctx context.Context, focusID string) (tree.ObjectTree, error) {
	id, err := e.requireCollection("browse")
	if err != nil {
		return tree.ObjectTree{}, err
	}

	return e.tree.Load(ctx, tree.Scope{CollectionID: id, FocusID: focusID})
}

// CreateDirectory creates name under parentID.
func (e *Explorer) CreateDirectory(ctx context.Context, parentID, name string) (models.DirectoryMetadata, error) {
	id, err := e.requireCollection("create directory")
	if err != nil {
		return models.DirectoryMetadata{}, err
	}

	return e.createDir.Run(ctx, files.CreateDirectoryParams{CollectionID: id, ParentID: parentID, Name: name})
}

// Upload encrypts and uploads data as a new file under parentID.
func (e *Explorer) Upload(ctx context.Context, parentID, name, mimeType string, data []byte) (models.FileMetadata, error) {
	id, key, err := e.requireKey("upload")
	if err != nil {
		return models.FileMetadata{}, err
	}

	return e.upload.Run(ctx, files.UploadParams{
		CollectionID:  id,
		ParentID:      parentID,
		Name:          name,
		MimeType:      mimeType,
		Data:          data,
		CollectionKey: key,
	})
}

// UpdateFile uploads data as a new version of fileID. The current
// metadata comes from the tree cache when fileID is the focus or one of
// its children; otherwise it is fetched first, so an unchanged upload of
// an uncached file costs one metadata request before the digest guard
// rejects it. Use UpdateVersion to avoid that request.
func (e *Explorer) UpdateFile(ctx context.Context, fileID string, data []byte) (models.FileMetadata, error) {
	id, _, err := e.requireKey("update")
	if err != nil {
		return models.FileMetadata{}, err
	}

	f, err := e.fileMetadata(ctx, id, fileID)
	if err != nil {
		return models.FileMetadata{}, err
	}

	return e.UpdateVersion(ctx, f, data)
}

// UpdateVersion uploads data as a new version of f, trusting f as the
// latest known version. Unchanged content fails with
// FileContentNotChanged without any network request.
func (e *Explorer) UpdateVersion(ctx context.Context, f models.FileMetadata, data []byte) (models.FileMetadata, error) {
	id, key, err := e.requireKey("update")
	if err != nil {
		return models.FileMetadata{}, err
	}

	if f.CollectionID != "" && f.CollectionID != id {
		return models.FileMetadata{}, apperrors.Newf(apperrors.FileNotFound, "update", "%s belongs to collection %s", f.ID, f.CollectionID)
	}

	parentID := ""
	if f.Parent != nil {
		parentID = *f.Parent
	}

	return e.version.Run(ctx, files.VersionParams{
		CollectionID:  id,
		ParentID:      parentID,
		File:          f,
		Data:          data,
		CollectionKey: key,
	})
}

// fileMetadata prefers the cached copy and falls back to the remote.
func (e *Explorer) fileMetadata(ctx context.Context, collectionID, fileID string) (models.FileMetadata, error) {
	cell := e.tree.Cell()
	if cell.Status == async.Finished && cell.Params.CollectionID == collectionID {
		if f, ok := cell.Data.Metadata.(models.FileMetadata); ok && f.ID == fileID {
			return f, nil
		}

		if u, ok := cell.Data.Child(fileID); ok {
			if f, ok := u.(models.FileMetadata); ok {
				return f, nil
			}
		}
	}

	u, err := e.remote.GetMetadata(ctx, collectionID, fileID)
	if err != nil {
		return models.FileMetadata{}, err
	}

	f, ok := u.(models.FileMetadata)
	if !ok {
		return models.FileMetadata{}, apperrors.Newf(apperrors.FileNotFound, "update", "%s is a directory", fileID)
	}

	return f, nil
}

// Rename renames unitID.
func (e *Explorer) Rename(ctx context.Context, unitID, name string) (models.Unit, error) {
	id, err := e.requireCollection("rename")
	if err != nil {
		return nil, err
	}

	return e.rename.Run(ctx, files.RenameParams{CollectionID: id, ID: unitID, Name: name})
}

// Delete deletes ids, all children of parentID. On partial failure the
// returned ids are the ones that were deleted and err is a
// *errors.BatchDeleteError.
func (e *Explorer) Delete(ctx context.Context, parentID string, ids []string, deleteNonEmpty bool) ([]string, error) {
	id, err := e.requireCollection("delete")
	if err != nil {
		return nil, err
	}

	p := batch.Params{CollectionID: id, ParentID: parentID, IDs: ids, DeleteNonEmpty: deleteNonEmpty}

	deleted, err := e.remove.Run(ctx, p)
	if err != nil {
		return batch.ConfirmedDeleted(p, err), err
	}

	return deleted, nil
}

// DeleteSelection deletes every selected unit.
func (e *Explorer) DeleteSelection(ctx context.Context, parentID string, deleteNonEmpty bool) ([]string, error) {
	ids := e.selection.IDs()
	if len(ids) == 0 {
		return nil, nil
	}

	return e.Delete(ctx, parentID, ids, deleteNonEmpty)
}

// Download fetches, decrypts and verifies versionID ("" for latest) of
// fileID.
func (e *Explorer) Download(ctx context.Context, fileID, versionID string) (files.Download, error) {
	id, key, err := e.requireKey("download")
	if err != nil {
		return files.Download{}, err
	}

	return e.download.Run(ctx, files.DownloadParams{
		CollectionID:  id,
		FileID:        fileID,
		VersionID:     versionID,
		CollectionKey: key,
	})
}

// Close detaches every subscription and waits for in-flight operations.
func (e *Explorer) Close() {
	for _, unsub := range e.unsubs {
		unsub()
	}

	e.unsubs = nil

	e.createDir.Wait()
	e.upload.Wait()
	e.version.Wait()
	e.rename.Wait()
	e.remove.Wait()
	e.download.Wait()
	e.tree.Close()
}
