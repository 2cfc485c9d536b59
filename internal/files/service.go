// Package files performs the remote file operations: directory creation,
// uploads, renames, version uploads and verified downloads. Every method
// has the signature of an async producer.
package files

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/sealbox/internal/models"
	"github.com/alexjbarnes/sealbox/internal/payload"
)

//go:generate mockgen -destination=mock_remote_test.go -package=files . Remote

// Remote is the subset of the API client the service needs.
type Remote interface {
	CreateDirectory(ctx context.Context, collectionID string, req models.NewDirectory) (models.DirectoryMetadata, error)
	CreateFile(ctx context.Context, collectionID string, req models.NewFile) (models.FileMetadata, error)
	Rename(ctx context.Context, collectionID, objectID, name string) (models.Unit, error)
	UploadVersion(ctx context.Context, collectionID, objectID string, req models.NewVersion) (models.FileMetadata, error)
	GetContent(ctx context.Context, collectionID, objectID, versionID string) (*models.FileContent, error)
}

// Service runs file operations against the remote store.
type Service struct {
	remote   Remote
	pipeline *payload.Pipeline
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(remote Remote, pipeline *payload.Pipeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{remote: remote, pipeline: pipeline, logger: logger}
}

// CreateDirectory creates a directory.
func (s *Service) CreateDirectory(ctx context.Context, p CreateDirectoryParams) (models.DirectoryMetadata, error) {
	d, err := s.remote.CreateDirectory(ctx, p.CollectionID, models.NewDirectory{
		Parent: models.ParentRef(p.ParentID),
		Name:   p.Name,
	})
	if err != nil {
		return models.DirectoryMetadata{}, fmt.Errorf("creating directory %q: %w", p.Name, err)
	}

	s.logger.Info("directory created",
		slog.String("collection_id", p.CollectionID),
		slog.String("id", d.ID),
	)

	return d, nil
}

// UploadFile encrypts and uploads a new file.
func (s *Service) UploadFile(ctx context.Context, p UploadParams) (models.FileMetadata, error) {
	sealed, err := s.pipeline.Encrypt(ctx, p.CollectionID, p.CollectionKey, p.Data)
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("uploading %q: %w", p.Name, err)
	}

	f, err := s.remote.CreateFile(ctx, p.CollectionID, models.NewFile{
		Parent:        models.ParentRef(p.ParentID),
		Name:          p.Name,
		MimeType:      p.MimeType,
		ContentDigest: sealed.ContentDigest,
		Content:       sealed.Content,
	})
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("uploading %q: %w", p.Name, err)
	}

	s.logger.Info("file uploaded",
		slog.String("collection_id", p.CollectionID),
		slog.String("id", f.ID),
		slog.Int("bytes", len(p.Data)),
	)

	return f, nil
}

// UploadVersion encrypts and uploads new content for an existing file.
// Unchanged content fails before any request is made.
func (s *Service) UploadVersion(ctx context.Context, p VersionParams) (models.FileMetadata, error) {
	sealed, err := s.pipeline.EncryptVersion(ctx, p.CollectionID, p.CollectionKey, p.Data, p.File.ContentDigest)
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("updating %q: %w", p.File.Name, err)
	}

	f, err := s.remote.UploadVersion(ctx, p.CollectionID, p.File.ID, models.NewVersion{
		ContentDigest: sealed.ContentDigest,
		Content:       sealed.Content,
	})
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("updating %q: %w", p.File.Name, err)
	}

	s.logger.Info("file version uploaded",
		slog.String("collection_id", p.CollectionID),
		slog.String("id", f.ID),
		slog.String("version_id", f.VersionID),
	)

	return f, nil
}

// Rename renames a unit.
func (s *Service) Rename(ctx context.Context, p RenameParams) (models.Unit, error) {
	u, err := s.remote.Rename(ctx, p.CollectionID, p.ID, p.Name)
	if err != nil {
		return nil, fmt.Errorf("renaming %s: %w", p.ID, err)
	}

	return u, nil
}

// Download fetches, decrypts and verifies a file version. The scope
// guard runs before the fetch.
func (s *Service) Download(ctx context.Context, p DownloadParams) (Download, error) {
	if err := payload.CheckScope("download", p.CollectionID, p.CollectionKey); err != nil {
		return Download{}, err
	}

	fc, err := s.remote.GetContent(ctx, p.CollectionID, p.FileID, p.VersionID)
	if err != nil {
		return Download{}, fmt.Errorf("downloading %s: %w", p.FileID, err)
	}

	plain, err := s.pipeline.Decrypt(ctx, p.CollectionID, p.CollectionKey, fc)
	if err != nil {
		return Download{}, fmt.Errorf("downloading %s: %w", p.FileID, err)
	}

	return Download{Name: fc.Name, MimeType: fc.MimeType, Data: plain}, nil
}
