package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUnit_Directory(t *testing.T) {
	u, err := DecodeUnit([]byte(`{"type":"DIRECTORY","id":"d1","collectionId":"c1","parent":null,"name":"Docs"}`))
	require.NoError(t, err)

	d, ok := u.(DirectoryMetadata)
	require.True(t, ok, "got %T", u)
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, "c1", d.CollectionID)
	assert.Nil(t, d.Parent)
	assert.Equal(t, TypeDirectory, u.UnitType())
}

func TestDecodeUnit_File(t *testing.T) {
	u, err := DecodeUnit([]byte(`{
		"type":"FILE","id":"f1","collectionId":"c1","parent":"d1","name":"a.txt",
		"versionId":"v2","versionAuthor":"u1","mimeType":"text/plain",
		"contentDigest":"abc","encryptedSize":42,"updatedAt":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)

	f, ok := u.(FileMetadata)
	require.True(t, ok, "got %T", u)
	require.NotNil(t, f.Parent)
	assert.Equal(t, "d1", *f.Parent)
	assert.Equal(t, "v2", f.VersionID)
	assert.Equal(t, int64(42), f.EncryptedSize)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), f.UpdatedAt)
}

func TestDecodeUnit_UnknownType(t *testing.T) {
	_, err := DecodeUnit([]byte(`{"type":"LINK","id":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit type")
}

func TestMarshalJSON_IncludesTypeTag(t *testing.T) {
	data, err := json.Marshal(FileMetadata{ID: "f1", Name: "a"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"FILE"`)

	back, err := DecodeUnit(data)
	require.NoError(t, err)
	assert.Equal(t, "f1", back.UnitID())
}

func TestDecodeUnits_Mixed(t *testing.T) {
	units, err := DecodeUnits([]byte(`[
		{"type":"FILE","id":"f1","name":"b"},
		{"type":"DIRECTORY","id":"d1","name":"a"}]`))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, TypeFile, units[0].UnitType())
	assert.Equal(t, TypeDirectory, units[1].UnitType())
}

func TestDecodeUnits_BadElementReportsIndex(t *testing.T) {
	_, err := DecodeUnits([]byte(`[{"type":"FILE","id":"f1"},{"type":"?"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit 1")
}

func TestWithName_CopiesUnit(t *testing.T) {
	orig := DirectoryMetadata{ID: "d1", Name: "old"}
	renamed := WithName(orig, "new")

	assert.Equal(t, "new", renamed.UnitName())
	assert.Equal(t, "old", orig.Name, "original must not be mutated")
}

func TestCollectionEncryptionKey_Wiped(t *testing.T) {
	k := CollectionEncryptionKey{CollectionID: "c1", Key: "deadbeef", Version: 3}
	w := k.Wiped()
	assert.Empty(t, w.Key)
	assert.Equal(t, "c1", w.CollectionID)
	assert.Equal(t, 3, w.Version)
	assert.Equal(t, "deadbeef", k.Key)
}

func TestParentRef(t *testing.T) {
	assert.Nil(t, ParentRef(""))
	require.NotNil(t, ParentRef("d1"))
	assert.Equal(t, "d1", *ParentRef("d1"))
}
