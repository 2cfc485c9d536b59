// Package mcpserver registers MCP tools that expose the decrypted tree of
// the active collection. It adapts the explorer to the MCP SDK's tool
// handler interface.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexjbarnes/sealbox/internal/auth"
	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/explorer"
	"github.com/alexjbarnes/sealbox/internal/models"
	"github.com/alexjbarnes/sealbox/internal/tree"
)

// RegisterTools adds all sealbox tools to the given MCP server.
func RegisterTools(server *mcp.Server, e *explorer.Explorer, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	t := &tools{e: e, logger: logger}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "tree_show",
		Description: "Show one neighbourhood of the collection tree: the focus unit, its ancestors nearest first, and its children (directories first, then by name). Omit focus_id for the collection root.",
	}, t.treeShow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "file_read",
		Description: "Download, decrypt and verify a file. Text is returned as-is, other content as base64. The digest is checked before anything is returned.",
	}, t.fileRead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "file_write",
		Description: "Encrypt and upload a new file under a directory. Fails if a unit with that name already exists.",
	}, t.fileWrite)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "file_update",
		Description: "Encrypt and upload new content for an existing file as a new version. Fails with FileContentNotChanged if the content is identical to the latest version.",
	}, t.fileUpdate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "directory_create",
		Description: "Create a directory. Omit parent_id to create it at the collection root.",
	}, t.directoryCreate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "unit_rename",
		Description: "Rename a file or directory.",
	}, t.unitRename)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "unit_delete",
		Description: "Delete units that share a parent. Each id is deleted independently; the result lists what was deleted and what failed. Non-empty directories need recursive=true.",
	}, t.unitDelete)
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// TreeShowInput holds parameters for tree_show.
type TreeShowInput struct {
	FocusID string `json:"focus_id,omitempty" jsonschema:"id of the directory or file to focus, defaults to the root"`
}

// FileReadInput holds parameters for file_read.
type FileReadInput struct {
	FileID    string `json:"file_id" jsonschema:"required,file id"`
	VersionID string `json:"version_id,omitempty" jsonschema:"version id, defaults to the latest"`
}

// FileWriteInput holds parameters for file_write.
type FileWriteInput struct {
	ParentID string `json:"parent_id,omitempty" jsonschema:"directory id, defaults to the root"`
	Name     string `json:"name" jsonschema:"required,file name"`
	Content  string `json:"content" jsonschema:"required,file content"`
	MimeType string `json:"mime_type,omitempty" jsonschema:"MIME type, defaults to text/plain"`
}

// FileUpdateInput holds parameters for file_update.
type FileUpdateInput struct {
	FileID  string `json:"file_id" jsonschema:"required,file id"`
	Content string `json:"content" jsonschema:"required,full new content"`
}

// DirectoryCreateInput holds parameters for directory_create.
type DirectoryCreateInput struct {
	ParentID string `json:"parent_id,omitempty" jsonschema:"parent directory id, defaults to the root"`
	Name     string `json:"name" jsonschema:"required,directory name"`
}

// UnitRenameInput holds parameters for unit_rename.
type UnitRenameInput struct {
	ID   string `json:"id" jsonschema:"required,unit id"`
	Name string `json:"name" jsonschema:"required,new name"`
}

// UnitDeleteInput holds parameters for unit_delete.
type UnitDeleteInput struct {
	ParentID  string   `json:"parent_id,omitempty" jsonschema:"directory holding the units, defaults to the root"`
	IDs       []string `json:"ids" jsonschema:"required,unit ids to delete"`
	Recursive bool     `json:"recursive,omitempty" jsonschema:"delete non-empty directories"`
}

// --- Output types ---

// UnitView is the tool representation of a unit.
type UnitView struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Parent        string `json:"parent,omitempty"`
	VersionID     string `json:"version_id,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
	EncryptedSize int64  `json:"encrypted_size,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// TreeResult is the output of tree_show.
type TreeResult struct {
	Kind     string     `json:"kind"`
	Focus    *UnitView  `json:"focus,omitempty"`
	Parents  []UnitView `json:"parents"`
	Children []UnitView `json:"children"`
}

// ReadResult is the output of file_read.
type ReadResult struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
}

// DeleteFailure is one id that could not be deleted.
type DeleteFailure struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// DeleteResult is the output of unit_delete.
type DeleteResult struct {
	Deleted []string        `json:"deleted"`
	Failed  []DeleteFailure `json:"failed,omitempty"`
}

func view(u models.Unit) UnitView {
	v := UnitView{ID: u.UnitID(), Type: string(u.UnitType()), Name: u.UnitName()}

	if p := u.UnitParent(); p != nil {
		v.Parent = *p
	}

	if f, ok := u.(models.FileMetadata); ok {
		v.VersionID = f.VersionID
		v.MimeType = f.MimeType
		v.EncryptedSize = f.EncryptedSize

		if !f.UpdatedAt.IsZero() {
			v.UpdatedAt = f.UpdatedAt.Format(time.RFC3339)
		}
	}

	return v
}

func treeResult(t tree.ObjectTree) *TreeResult {
	r := &TreeResult{
		Kind:     t.Kind.String(),
		Parents:  make([]UnitView, 0, len(t.Parents)),
		Children: make([]UnitView, 0, len(t.Children)),
	}

	if t.Metadata != nil {
		v := view(t.Metadata)
		r.Focus = &v
	}

	for _, p := range t.Parents {
		r.Parents = append(r.Parents, view(p))
	}

	for _, c := range t.Children {
		r.Children = append(r.Children, view(c))
	}

	return r
}

// --- Handlers ---

type tools struct {
	e      *explorer.Explorer
	logger *slog.Logger
}

func (t *tools) logCall(ctx context.Context, tool string, err error) {
	attrs := []any{
		slog.String("tool", tool),
		slog.String("user_id", auth.RequestUserID(ctx)),
	}

	if err != nil {
		attrs = append(attrs,
			slog.String("kind", apperrors.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
	}

	t.logger.Debug("tool call", attrs...)
}

func (t *tools) treeShow(ctx context.Context, _ *mcp.CallToolRequest, input TreeShowInput) (*mcp.CallToolResult, *TreeResult, error) {
	tr, err := t.e.Browse(ctx, input.FocusID)
	t.logCall(ctx, "tree_show", err)

	if err != nil {
		return nil, nil, err
	}

	result := treeResult(tr)

	return textResult(result), result, nil
}

func (t *tools) fileRead(ctx context.Context, _ *mcp.CallToolRequest, input FileReadInput) (*mcp.CallToolResult, *ReadResult, error) {
	dl, err := t.e.Download(ctx, input.FileID, input.VersionID)
	t.logCall(ctx, "file_read", err)

	if err != nil {
		return nil, nil, err
	}

	result := &ReadResult{Name: dl.Name, MimeType: dl.MimeType, Size: len(dl.Data)}

	if utf8.Valid(dl.Data) {
		result.Encoding = "utf-8"
		result.Content = string(dl.Data)
	} else {
		result.Encoding = "base64"
		result.Content = base64.StdEncoding.EncodeToString(dl.Data)
	}

	return textResult(result), result, nil
}

func (t *tools) fileWrite(ctx context.Context, _ *mcp.CallToolRequest, input FileWriteInput) (*mcp.CallToolResult, *UnitView, error) {
	mime := input.MimeType
	if mime == "" {
		mime = "text/plain"
	}

	f, err := t.e.Upload(ctx, input.ParentID, input.Name, mime, []byte(input.Content))
	t.logCall(ctx, "file_write", err)

	if err != nil {
		return nil, nil, err
	}

	result := view(f)

	return textResult(result), &result, nil
}

func (t *tools) fileUpdate(ctx context.Context, _ *mcp.CallToolRequest, input FileUpdateInput) (*mcp.CallToolResult, *UnitView, error) {
	f, err := t.e.UpdateFile(ctx, input.FileID, []byte(input.Content))
	t.logCall(ctx, "file_update", err)

	if err != nil {
		return nil, nil, err
	}

	result := view(f)

	return textResult(result), &result, nil
}

func (t *tools) directoryCreate(ctx context.Context, _ *mcp.CallToolRequest, input DirectoryCreateInput) (*mcp.CallToolResult, *UnitView, error) {
	d, err := t.e.CreateDirectory(ctx, input.ParentID, input.Name)
	t.logCall(ctx, "directory_create", err)

	if err != nil {
		return nil, nil, err
	}

	result := view(d)

	return textResult(result), &result, nil
}

func (t *tools) unitRename(ctx context.Context, _ *mcp.CallToolRequest, input UnitRenameInput) (*mcp.CallToolResult, *UnitView, error) {
	u, err := t.e.Rename(ctx, input.ID, input.Name)
	t.logCall(ctx, "unit_rename", err)

	if err != nil {
		return nil, nil, err
	}

	result := view(u)

	return textResult(result), &result, nil
}

// unitDelete reports a partial failure as a result rather than an error
// so the caller sees which ids are gone.
func (t *tools) unitDelete(ctx context.Context, _ *mcp.CallToolRequest, input UnitDeleteInput) (*mcp.CallToolResult, *DeleteResult, error) {
	if len(input.IDs) == 0 {
		return nil, nil, fmt.Errorf("ids must not be empty")
	}

	deleted, err := t.e.Delete(ctx, input.ParentID, input.IDs, input.Recursive)
	t.logCall(ctx, "unit_delete", err)

	result := &DeleteResult{Deleted: deleted}
	if result.Deleted == nil {
		result.Deleted = []string{}
	}

	if err != nil {
		be, ok := apperrors.AsBatchDelete(err)
		if !ok {
			return nil, nil, err
		}

		for _, f := range be.Errors {
			result.Failed = append(result.Failed, DeleteFailure{
				ID:    f.ID,
				Kind:  apperrors.KindOf(f.Err).String(),
				Error: f.Err.Error(),
			})
		}
	}

	return textResult(result), result, nil
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
