// Package models defines the wire and domain types shared across internal packages.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Collection identifies an encrypted folder. It never carries key material.
type Collection struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	EncryptionKeyVersion int    `json:"encryptionKeyVersion"`
}

// CollectionEncryptionKey is the resolved symmetric secret for one
// collection. Key is hex encoded.
type CollectionEncryptionKey struct {
	CollectionID string `json:"collectionId"`
	Key          string `json:"key"`
	Version      int    `json:"version"`
}

// Wiped returns a copy with the secret removed, safe to retain in
// operation parameters and history.
func (k CollectionEncryptionKey) Wiped() CollectionEncryptionKey {
	k.Key = ""
	return k
}

// EncryptionKeyRecord is the collection key as stored by the server,
// asymmetrically encrypted to the user's public key.
type EncryptionKeyRecord struct {
	CollectionID string `json:"collectionId"`
	EncryptedKey string `json:"encryptedKey"`
	Version      int    `json:"version"`
}

// KeypairRecord is the user's keypair as stored by the server. The private
// key is sealed with the password-derived master key.
type KeypairRecord struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
}

// UnitType tags the filesystem unit variants on the wire.
type UnitType string

const (
	TypeDirectory UnitType = "DIRECTORY"
	TypeFile      UnitType = "FILE"
)

// Unit is a filesystem unit: DirectoryMetadata or FileMetadata. Both are
// value types so cached copies never alias server responses.
type Unit interface {
	UnitID() string
	UnitCollectionID() string
	UnitParent() *string
	UnitName() string
	UnitType() UnitType
}

// DirectoryMetadata describes a directory.
type DirectoryMetadata struct {
	ID           string  `json:"id"`
	CollectionID string  `json:"collectionId"`
	Parent       *string `json:"parent"`
	Name         string  `json:"name"`
}

func (d DirectoryMetadata) UnitID() string           { return d.ID }
func (d DirectoryMetadata) UnitCollectionID() string { return d.CollectionID }
func (d DirectoryMetadata) UnitParent() *string      { return d.Parent }
func (d DirectoryMetadata) UnitName() string         { return d.Name }
func (d DirectoryMetadata) UnitType() UnitType       { return TypeDirectory }

// MarshalJSON adds the type tag.
func (d DirectoryMetadata) MarshalJSON() ([]byte, error) {
	type plain DirectoryMetadata

	return json.Marshal(struct {
		Type UnitType `json:"type"`
		plain
	}{TypeDirectory, plain(d)})
}

// FileMetadata describes a file and its latest version.
type FileMetadata struct {
	ID            string    `json:"id"`
	CollectionID  string    `json:"collectionId"`
	Parent        *string   `json:"parent"`
	Name          string    `json:"name"`
	VersionID     string    `json:"versionId"`
	VersionAuthor string    `json:"versionAuthor"`
	MimeType      string    `json:"mimeType"`
	ContentDigest string    `json:"contentDigest"`
	EncryptedSize int64     `json:"encryptedSize"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (f FileMetadata) UnitID() string           { return f.ID }
func (f FileMetadata) UnitCollectionID() string { return f.CollectionID }
func (f FileMetadata) UnitParent() *string      { return f.Parent }
func (f FileMetadata) UnitName() string         { return f.Name }
func (f FileMetadata) UnitType() UnitType       { return TypeFile }

// MarshalJSON adds the type tag.
func (f FileMetadata) MarshalJSON() ([]byte, error) {
	type plain FileMetadata

	return json.Marshal(struct {
		Type UnitType `json:"type"`
		plain
	}{TypeFile, plain(f)})
}

// WithName returns a copy of u renamed to name.
func WithName(u Unit, name string) Unit {
	switch v := u.(type) {
	case DirectoryMetadata:
		v.Name = name
		return v
	case FileMetadata:
		v.Name = name
		return v
	default:
		panic(fmt.Sprintf("models: unknown unit type %T", u))
	}
}

// DecodeUnit decodes a tagged unit from JSON.
func DecodeUnit(data []byte) (Unit, error) {
	switch t := UnitType(gjson.GetBytes(data, "type").Str); t {
	case TypeDirectory:
		var d DirectoryMetadata
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decoding directory: %w", err)
		}

		return d, nil
	case TypeFile:
		var f FileMetadata
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding file: %w", err)
		}

		return f, nil
	default:
		return nil, fmt.Errorf("unknown unit type %q", t)
	}
}

// DecodeUnits decodes a JSON array of tagged units.
func DecodeUnits(data []byte) ([]Unit, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding unit list: %w", err)
	}

	units := make([]Unit, 0, len(raw))

	for i, r := range raw {
		u, err := DecodeUnit(r)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}

		units = append(units, u)
	}

	return units, nil
}

// EncryptedContent is a ciphertext ready for upload or as downloaded.
// Bytes is the hex-encoded ciphertext.
type EncryptedContent struct {
	Algorithm            string `json:"algorithm"`
	IV                   string `json:"iv"`
	EncryptionKeyVersion int    `json:"encryptionKeyVersion"`
	Bytes                string `json:"bytes"`
}

// NewDirectory is the request body for creating a directory.
type NewDirectory struct {
	Type   UnitType `json:"type"`
	Parent *string  `json:"parent"`
	Name   string   `json:"name"`
}

// NewFile is the request body for uploading a new file.
type NewFile struct {
	Type          UnitType         `json:"type"`
	Parent        *string          `json:"parent"`
	Name          string           `json:"name"`
	MimeType      string           `json:"mimeType"`
	ContentDigest string           `json:"contentDigest"`
	Content       EncryptedContent `json:"content"`
}

// NewVersion is the request body for uploading a new file version.
type NewVersion struct {
	ContentDigest string           `json:"contentDigest"`
	Content       EncryptedContent `json:"content"`
}

// RenameRequest is the request body for renaming a unit.
type RenameRequest struct {
	Name string `json:"name"`
}

// FileContent is the response of a content download.
type FileContent struct {
	Content  EncryptedContent `json:"content"`
	Digest   string           `json:"digest"`
	Name     string           `json:"name"`
	MimeType string           `json:"mimeType"`
}

// ParentRef converts a parent id to the nullable wire form. The empty
// string means the collection root.
func ParentRef(id string) *string {
	if id == "" {
		return nil
	}

	return &id
}
