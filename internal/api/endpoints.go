package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

// ListCollections returns every collection visible to the token.
func (c *Client) ListCollections(ctx context.Context) ([]models.Collection, error) {
	const op = "list collections"

	resp, err := c.do(ctx, op, http.MethodGet, "/collections", nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	if err := check(op, resp); err != nil {
		return nil, err
	}

	var out []models.Collection
	if err := decode(op, resp.body, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// GetCollection returns the collection, or nil when the server answers
// 400, 403 or 404.
func (c *Client) GetCollection(ctx context.Context, collectionID string) (*models.Collection, error) {
	const op = "get collection"

	resp, err := c.do(ctx, op, http.MethodGet, collectionPath(collectionID), nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	switch resp.status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
		return nil, nil
	}

	if err := check(op, resp); err != nil {
		return nil, err
	}

	var col models.Collection
	if err := decode(op, resp.body, &col); err != nil {
		return nil, err
	}

	return &col, nil
}

// GetEncryptionKey returns the collection's encrypted key record, or nil
// when the server answers 403 or 404.
func (c *Client) GetEncryptionKey(ctx context.Context, collectionID string) (*models.EncryptionKeyRecord, error) {
	const op = "get encryption key"

	resp, err := c.do(ctx, op, http.MethodGet, collectionPath(collectionID)+"/encryption-key", nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	switch resp.status {
	case http.StatusForbidden, http.StatusNotFound:
		return nil, nil
	}

	if err := check(op, resp); err != nil {
		return nil, err
	}

	var rec models.EncryptionKeyRecord
	if err := decode(op, resp.body, &rec); err != nil {
		return nil, err
	}

	if rec.CollectionID == "" {
		rec.CollectionID = collectionID
	}

	return &rec, nil
}

// GetKeypair returns the user's keypair record, or nil when none exists.
func (c *Client) GetKeypair(ctx context.Context) (*models.KeypairRecord, error) {
	const op = "get keypair"

	resp, err := c.do(ctx, op, http.MethodGet, "/keypair", nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusNotFound {
		return nil, nil
	}

	if err := check(op, resp); err != nil {
		return nil, err
	}

	var kp models.KeypairRecord
	if err := decode(op, resp.body, &kp); err != nil {
		return nil, err
	}

	return &kp, nil
}

// CreateDirectory creates a directory under req.Parent.
func (c *Client) CreateDirectory(ctx context.Context, collectionID string, req models.NewDirectory) (models.DirectoryMetadata, error) {
	const op = "create directory"

	req.Type = models.TypeDirectory

	resp, err := c.do(ctx, op, http.MethodPost, filesPath(collectionID, "", ""), req, maxAPIResponseBytes)
	if err != nil {
		return models.DirectoryMetadata{}, err
	}

	if err := check(op, resp, statusRule{status: http.StatusConflict, kind: apperrors.FileAlreadyExists}); err != nil {
		return models.DirectoryMetadata{}, err
	}

	var d models.DirectoryMetadata
	if err := decode(op, resp.body, &d); err != nil {
		return models.DirectoryMetadata{}, err
	}

	return d, nil
}

// CreateFile uploads a new encrypted file under req.Parent.
func (c *Client) CreateFile(ctx context.Context, collectionID string, req models.NewFile) (models.FileMetadata, error) {
	const op = "create file"

	req.Type = models.TypeFile

	resp, err := c.do(ctx, op, http.MethodPost, filesPath(collectionID, "", ""), req, maxAPIResponseBytes)
	if err != nil {
		return models.FileMetadata{}, err
	}

	if err := check(op, resp, statusRule{status: http.StatusConflict, kind: apperrors.FileAlreadyExists}); err != nil {
		return models.FileMetadata{}, err
	}

	var f models.FileMetadata
	if err := decode(op, resp.body, &f); err != nil {
		return models.FileMetadata{}, err
	}

	return f, nil
}

// GetMetadata returns the unit's metadata.
func (c *Client) GetMetadata(ctx context.Context, collectionID, objectID string) (models.Unit, error) {
	const op = "get metadata"

	resp, err := c.do(ctx, op, http.MethodGet, filesPath(collectionID, objectID, "metadata"), nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	if err := check(op, resp, fileNotFound...); err != nil {
		return nil, err
	}

	return decodeUnit(op, resp.body)
}

// GetParents returns the unit's ancestors, nearest first.
func (c *Client) GetParents(ctx context.Context, collectionID, objectID string) ([]models.DirectoryMetadata, error) {
	const op = "get parents"

	resp, err := c.do(ctx, op, http.MethodGet, filesPath(collectionID, objectID, "parents"), nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	if err := check(op, resp, fileNotFound...); err != nil {
		return nil, err
	}

	var parents []models.DirectoryMetadata
	if err := decode(op, resp.body, &parents); err != nil {
		return nil, err
	}

	return parents, nil
}

// GetChildren lists a directory. An empty objectID lists the root.
func (c *Client) GetChildren(ctx context.Context, collectionID, objectID string) ([]models.Unit, error) {
	const op = "get children"

	resp, err := c.do(ctx, op, http.MethodGet, filesPath(collectionID, objectID, "children"), nil, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	rules := append([]statusRule{
		{status: http.StatusPreconditionFailed, reason: "NotADirectory", kind: apperrors.NotADirectory},
	}, fileNotFound...)

	if err := check(op, resp, rules...); err != nil {
		return nil, err
	}

	units, err := models.DecodeUnits(resp.body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.APIResponse, op, err)
	}

	return units, nil
}

// Rename renames a unit and returns its updated metadata.
func (c *Client) Rename(ctx context.Context, collectionID, objectID, name string) (models.Unit, error) {
	const op = "rename"

	resp, err := c.do(ctx, op, http.MethodPatch, filesPath(collectionID, objectID, ""), models.RenameRequest{Name: name}, maxAPIResponseBytes)
	if err != nil {
		return nil, err
	}

	if err := check(op, resp, statusRule{status: http.StatusConflict, kind: apperrors.FileAlreadyExists}); err != nil {
		return nil, err
	}

	return decodeUnit(op, resp.body)
}

// Delete removes one unit. A non-empty directory is refused unless
// deleteNonEmpty is set.
func (c *Client) Delete(ctx context.Context, collectionID, objectID string, deleteNonEmpty bool) error {
	const op = "delete"

	q := url.Values{}
	q.Set("deleteNonEmpty", strconv.FormatBool(deleteNonEmpty))

	resp, err := c.do(ctx, op, http.MethodDelete, filesPath(collectionID, objectID, "")+"?"+q.Encode(), nil, maxAPIResponseBytes)
	if err != nil {
		return err
	}

	return check(op, resp, statusRule{status: http.StatusPreconditionFailed, reason: "RecursivelyDelete", kind: apperrors.RecursivelyDelete})
}

// UploadVersion stores a new version of an existing file.
func (c *Client) UploadVersion(ctx context.Context, collectionID, objectID string, req models.NewVersion) (models.FileMetadata, error) {
	const op = "upload version"

	resp, err := c.do(ctx, op, http.MethodPost, filesPath(collectionID, objectID, "versions"), req, maxAPIResponseBytes)
	if err != nil {
		return models.FileMetadata{}, err
	}

	if err := check(op, resp, statusRule{status: http.StatusUnprocessableEntity, reason: "FileContentNotChanged", kind: apperrors.FileContentNotChanged}); err != nil {
		return models.FileMetadata{}, err
	}

	var f models.FileMetadata
	if err := decode(op, resp.body, &f); err != nil {
		return models.FileMetadata{}, err
	}

	return f, nil
}

// GetContent downloads the encrypted content of a file version. An empty
// versionID selects the latest version.
func (c *Client) GetContent(ctx context.Context, collectionID, objectID, versionID string) (*models.FileContent, error) {
	const op = "get content"

	endpoint := filesPath(collectionID, objectID, "content")
	if versionID != "" {
		endpoint += "?" + url.Values{"versionId": {versionID}}.Encode()
	}

	resp, err := c.do(ctx, op, http.MethodGet, endpoint, nil, maxContentResponseBytes)
	if err != nil {
		return nil, err
	}

	if err := check(op, resp, fileNotFound...); err != nil {
		return nil, err
	}

	var fc models.FileContent
	if err := decode(op, resp.body, &fc); err != nil {
		return nil, err
	}

	return &fc, nil
}
