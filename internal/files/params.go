package files

import (
	"github.com/alexjbarnes/sealbox/internal/models"
)

// CreateDirectoryParams creates Name under ParentID ("" for the root).
type CreateDirectoryParams struct {
	CollectionID string
	ParentID     string
	Name         string
}

func (p CreateDirectoryParams) Key() string {
	return p.CollectionID + "/" + p.ParentID + "/" + p.Name
}

// UploadParams uploads a new file. Data and CollectionKey are dropped by Redacted.
type UploadParams struct {
	CollectionID  string
	ParentID      string
	Name          string
	MimeType      string
	Data          []byte
	Size          int
	CollectionKey models.CollectionEncryptionKey
}

func (p UploadParams) Key() string {
	return p.CollectionID + "/" + p.ParentID + "/" + p.Name
}

// Redacted wipes the collection key and drops the plaintext.
func (p UploadParams) Redacted() UploadParams {
	p.Size = len(p.Data)
	p.Data = nil
	p.CollectionKey = p.CollectionKey.Wiped()

	return p
}

// VersionParams uploads new content for File. File.ContentDigest is the
// latest known digest and drives the unchanged-content guard.
type VersionParams struct {
	CollectionID  string
	ParentID      string
	File          models.FileMetadata
	Data          []byte
	Size          int
	CollectionKey models.CollectionEncryptionKey
}

func (p VersionParams) Key() string {
	return p.CollectionID + "/" + p.File.ID
}

// Redacted wipes the collection key and drops the plaintext.
func (p VersionParams) Redacted() VersionParams {
	p.Size = len(p.Data)
	p.Data = nil
	p.CollectionKey = p.CollectionKey.Wiped()

	return p
}

// RenameParams renames ID to Name.
type RenameParams struct {
	CollectionID string
	ID           string
	Name         string
}

func (p RenameParams) Key() string {
	return p.CollectionID + "/" + p.ID
}

// DownloadParams downloads VersionID ("" for latest) of FileID.
type DownloadParams struct {
	CollectionID  string
	FileID        string
	VersionID     string
	CollectionKey models.CollectionEncryptionKey
}

func (p DownloadParams) Key() string {
	return p.CollectionID + "/" + p.FileID + "@" + p.VersionID
}

// Redacted wipes the collection key.
func (p DownloadParams) Redacted() DownloadParams {
	p.CollectionKey = p.CollectionKey.Wiped()
	return p
}

// Download is verified plaintext.
type Download struct {
	Name     string
	MimeType string
	Data     []byte
}
