// Package explorertest provides an in-memory remote store and a test
// account for exercising the explorer without a server.
package explorertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

// Remote is an in-memory store for one account. It implements
// explorer.Remote.
type Remote struct {
	mu          sync.Mutex
	keypair     *models.KeypairRecord
	keys        map[string]*models.EncryptionKeyRecord
	collections map[string]models.Collection
	units       map[string]models.Unit
	contents    map[string]*models.FileContent
	failDelete  map[string]error
	calls       map[string]int
	nextID      int
}

// NewEmptyRemote returns a store with no account data.
func NewEmptyRemote() *Remote {
	return &Remote{
		keys:        make(map[string]*models.EncryptionKeyRecord),
		collections: make(map[string]models.Collection),
		units:       make(map[string]models.Unit),
		contents:    make(map[string]*models.FileContent),
		failDelete:  make(map[string]error),
		calls:       make(map[string]int),
	}
}

// Calls returns how many times method was called.
func (f *Remote) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

// FailDelete makes every delete of id fail with err.
func (f *Remote) FailDelete(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failDelete[id] = err
}

func (f *Remote) hit(method string) {
	f.calls[method]++
}

func (f *Remote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *Remote) ListCollections(context.Context) ([]models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ListCollections")

	out := make([]models.Collection, 0, len(f.collections))
	for _, c := range f.collections {
		out = append(out, c)
	}

	return out, nil
}

func (f *Remote) GetCollection(_ context.Context, id string) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetCollection")

	c, ok := f.collections[id]
	if !ok {
		return nil, nil
	}

	return &c, nil
}

func (f *Remote) GetKeypair(context.Context) (*models.KeypairRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetKeypair")

	return f.keypair, nil
}

func (f *Remote) GetEncryptionKey(_ context.Context, id string) (*models.EncryptionKeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetEncryptionKey")

	return f.keys[id], nil
}

func (f *Remote) checkParent(parent *string) error {
	if parent == nil {
		return nil
	}

	u, ok := f.units[*parent]
	if !ok {
		return apperrors.New(apperrors.FileNotFound, "create")
	}

	if u.UnitType() != models.TypeDirectory {
		return apperrors.New(apperrors.NotADirectory, "create")
	}

	return nil
}

func (f *Remote) nameTaken(parent *string, name string) bool {
	for _, u := range f.units {
		if sameParent(u.UnitParent(), parent) && u.UnitName() == name {
			return true
		}
	}

	return false
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func (f *Remote) CreateDirectory(_ context.Context, collectionID string, req models.NewDirectory) (models.DirectoryMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateDirectory")

	if err := f.checkParent(req.Parent); err != nil {
		return models.DirectoryMetadata{}, err
	}

	if f.nameTaken(req.Parent, req.Name) {
		return models.DirectoryMetadata{}, apperrors.New(apperrors.FileAlreadyExists, "create directory")
	}

	d := models.DirectoryMetadata{ID: f.id("d"), CollectionID: collectionID, Parent: req.Parent, Name: req.Name}
	f.units[d.ID] = d

	return d, nil
}

func (f *Remote) CreateFile(_ context.Context, collectionID string, req models.NewFile) (models.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateFile")

	if err := f.checkParent(req.Parent); err != nil {
		return models.FileMetadata{}, err
	}

	if f.nameTaken(req.Parent, req.Name) {
		return models.FileMetadata{}, apperrors.New(apperrors.FileAlreadyExists, "create file")
	}

	file := models.FileMetadata{
		ID:            f.id("f"),
		CollectionID:  collectionID,
		Parent:        req.Parent,
		Name:          req.Name,
		VersionID:     f.id("v"),
		MimeType:      req.MimeType,
		ContentDigest: req.ContentDigest,
		EncryptedSize: int64(len(req.Content.Bytes) / 2),
		UpdatedAt:     time.Unix(1700000000, 0).UTC(),
	}
	f.units[file.ID] = file
	f.contents[file.ID] = &models.FileContent{
		Content:  req.Content,
		Digest:   req.ContentDigest,
		Name:     req.Name,
		MimeType: req.MimeType,
	}

	return file, nil
}

func (f *Remote) GetMetadata(_ context.Context, _, objectID string) (models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetMetadata")

	u, ok := f.units[objectID]
	if !ok {
		return nil, apperrors.New(apperrors.FileNotFound, "metadata")
	}

	return u, nil
}

func (f *Remote) GetParents(_ context.Context, _, objectID string) ([]models.DirectoryMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetParents")

	u, ok := f.units[objectID]
	if !ok {
		return nil, apperrors.New(apperrors.FileNotFound, "parents")
	}

	var parents []models.DirectoryMetadata

	for p := u.UnitParent(); p != nil; {
		d := f.units[*p].(models.DirectoryMetadata)
		parents = append(parents, d)
		p = d.Parent
	}

	return parents, nil
}

func (f *Remote) GetChildren(_ context.Context, _, objectID string) ([]models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetChildren")

	var parent *string

	if objectID != "" {
		u, ok := f.units[objectID]
		if !ok {
			return nil, apperrors.New(apperrors.FileNotFound, "children")
		}

		if u.UnitType() != models.TypeDirectory {
			return nil, apperrors.New(apperrors.NotADirectory, "children")
		}

		parent = &objectID
	}

	var out []models.Unit

	for _, u := range f.units {
		if sameParent(u.UnitParent(), parent) {
			out = append(out, u)
		}
	}

	return out, nil
}

func (f *Remote) Rename(_ context.Context, _, objectID, name string) (models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("Rename")

	u, ok := f.units[objectID]
	if !ok {
		return nil, apperrors.New(apperrors.FileNotFound, "rename")
	}

	if f.nameTaken(u.UnitParent(), name) {
		return nil, apperrors.New(apperrors.FileAlreadyExists, "rename")
	}

	u = models.WithName(u, name)
	f.units[objectID] = u

	return u, nil
}

func (f *Remote) Delete(_ context.Context, _, objectID string, deleteNonEmpty bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("Delete")

	if err, ok := f.failDelete[objectID]; ok {
		return err
	}

	if _, ok := f.units[objectID]; !ok {
		return apperrors.New(apperrors.FileNotFound, "delete")
	}

	for _, u := range f.units {
		if p := u.UnitParent(); p != nil && *p == objectID && !deleteNonEmpty {
			return apperrors.New(apperrors.RecursivelyDelete, "delete")
		}
	}

	delete(f.units, objectID)
	delete(f.contents, objectID)

	return nil
}

func (f *Remote) UploadVersion(_ context.Context, _, objectID string, req models.NewVersion) (models.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("UploadVersion")

	u, ok := f.units[objectID]
	if !ok {
		return models.FileMetadata{}, apperrors.New(apperrors.FileNotFound, "upload version")
	}

	file := u.(models.FileMetadata)
	file.VersionID = f.id("v")
	file.ContentDigest = req.ContentDigest
	file.EncryptedSize = int64(len(req.Content.Bytes) / 2)
	f.units[objectID] = file

	fc := *f.contents[objectID]
	fc.Content = req.Content
	fc.Digest = req.ContentDigest
	f.contents[objectID] = &fc

	return file, nil
}

func (f *Remote) GetContent(_ context.Context, _, objectID, _ string) (*models.FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetContent")

	fc, ok := f.contents[objectID]
	if !ok {
		return nil, apperrors.New(apperrors.FileNotFound, "content")
	}

	out := *fc
	out.Name = f.units[objectID].UnitName()

	return &out, nil
}
