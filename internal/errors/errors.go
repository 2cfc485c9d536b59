// Package errors defines the domain error taxonomy shared by every layer.
//
// Server responses are mapped to a Kind at the API edge so upper layers
// branch on KindOf(err) or errors.Is(err, ErrX), never on status codes.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a domain error variant.
type Kind int

const (
	Unknown Kind = iota
	FileNotFound
	CollectionNotFound
	FileAlreadyExists
	NotADirectory
	RecursivelyDelete
	FileContentNotChanged
	EncryptedFileTooLarge
	KeyVersionMismatch
	DigestMismatch
	CollectionKeyMismatch
	CollectionKeyNotSet
	KeypairNotReady
	BatchDelete
	APIRequest
	APIResponse
)

// Kinds lists every variant other than Unknown, in declaration order.
var Kinds = []Kind{
	FileNotFound,
	CollectionNotFound,
	FileAlreadyExists,
	NotADirectory,
	RecursivelyDelete,
	FileContentNotChanged,
	EncryptedFileTooLarge,
	KeyVersionMismatch,
	DigestMismatch,
	CollectionKeyMismatch,
	CollectionKeyNotSet,
	KeypairNotReady,
	BatchDelete,
	APIRequest,
	APIResponse,
}

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case CollectionNotFound:
		return "CollectionNotFound"
	case FileAlreadyExists:
		return "FileAlreadyExists"
	case NotADirectory:
		return "NotADirectory"
	case RecursivelyDelete:
		return "RecursivelyDelete"
	case FileContentNotChanged:
		return "FileContentNotChanged"
	case EncryptedFileTooLarge:
		return "EncryptedFileTooLarge"
	case KeyVersionMismatch:
		return "KeyVersionMismatch"
	case DigestMismatch:
		return "DigestMismatch"
	case CollectionKeyMismatch:
		return "CollectionKeyMismatch"
	case CollectionKeyNotSet:
		return "CollectionKeyNotSet"
	case KeypairNotReady:
		return "KeypairNotReady"
	case BatchDelete:
		return "BatchDelete"
	case APIRequest:
		return "APIRequest"
	case APIResponse:
		return "APIResponse"
	default:
		return "Unknown"
	}
}

// Integrity reports whether the kind is a client-detected integrity
// failure. These are always fatal to the operation.
func (k Kind) Integrity() bool {
	switch k {
	case KeyVersionMismatch, DigestMismatch, CollectionKeyMismatch:
		return true
	}

	return false
}

var messages = map[Kind]string{
	FileNotFound:          "file not found",
	CollectionNotFound:    "collection not found",
	FileAlreadyExists:     "file already exists",
	NotADirectory:         "not a directory",
	RecursivelyDelete:     "directory is not empty",
	FileContentNotChanged: "file content not changed",
	EncryptedFileTooLarge: "encrypted file too large",
	KeyVersionMismatch:    "encryption key version mismatch",
	DigestMismatch:        "content digest mismatch",
	CollectionKeyMismatch: "collection key does not belong to target collection",
	CollectionKeyNotSet:   "key not set for this collection",
	KeypairNotReady:       "keypair is not unlocked",
	BatchDelete:           "batch delete partially failed",
	APIRequest:            "API request failed",
	APIResponse:           "unexpected API response",
}

// Error is a domain error carrying its Kind. Two *Error values match
// under errors.Is when their kinds are equal, so the sentinels below
// work as match targets for any wrapped instance.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	msg, ok := messages[e.Kind]
	if !ok {
		msg = "unknown error"
	}

	b.WriteString(msg)

	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

// ErrorKind returns the variant.
func (e *Error) ErrorKind() Kind { return e.Kind }

// New builds an *Error of the given kind.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Newf builds an *Error with a formatted detail string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels for errors.Is matching.
var (
	ErrFileNotFound          = &Error{Kind: FileNotFound}
	ErrCollectionNotFound    = &Error{Kind: CollectionNotFound}
	ErrFileAlreadyExists     = &Error{Kind: FileAlreadyExists}
	ErrNotADirectory         = &Error{Kind: NotADirectory}
	ErrRecursivelyDelete     = &Error{Kind: RecursivelyDelete}
	ErrFileContentNotChanged = &Error{Kind: FileContentNotChanged}
	ErrKeyVersionMismatch    = &Error{Kind: KeyVersionMismatch}
	ErrDigestMismatch        = &Error{Kind: DigestMismatch}
	ErrCollectionKeyMismatch = &Error{Kind: CollectionKeyMismatch}
	ErrCollectionKeyNotSet   = &Error{Kind: CollectionKeyNotSet}
	ErrKeypairNotReady       = &Error{Kind: KeypairNotReady}
	ErrAPIRequest            = &Error{Kind: APIRequest}
	ErrAPIResponse           = &Error{Kind: APIResponse}
)

// TooLargeError reports an encrypted payload over the upload limit.
type TooLargeError struct {
	Actual int64
	Max    int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("encrypted file too large: %d bytes exceeds maximum of %d bytes", e.Actual, e.Max)
}

// ErrorKind returns EncryptedFileTooLarge.
func (e *TooLargeError) ErrorKind() Kind { return EncryptedFileTooLarge }

// DeleteFailure is one id that could not be deleted.
type DeleteFailure struct {
	ID  string
	Err error
}

// BatchDeleteError is returned when at least one object in a batch delete
// failed. Deleted holds the ids that were removed anyway; callers must
// prune local state with it even though the operation failed overall.
type BatchDeleteError struct {
	Deleted []string
	Errors  []DeleteFailure
}

func (e *BatchDeleteError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("deleting %s: %v (%d deleted)", e.Errors[0].ID, e.Errors[0].Err, len(e.Deleted))
	}

	return fmt.Sprintf("%d of %d deletes failed", len(e.Errors), len(e.Errors)+len(e.Deleted))
}

// ErrorKind returns BatchDelete.
func (e *BatchDeleteError) ErrorKind() Kind { return BatchDelete }

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchDeleteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, f := range e.Errors {
		errs = append(errs, f.Err)
	}

	return errs
}

// FailedIDs returns the ids that could not be deleted.
func (e *BatchDeleteError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors {
		ids = append(ids, f.ID)
	}

	return ids
}

type kinded interface {
	ErrorKind() Kind
}

// KindOf returns the variant of the first kinded error in err's chain,
// or Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}

	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}

	return Unknown
}

// AsBatchDelete extracts a *BatchDeleteError from err's chain.
func AsBatchDelete(err error) (*BatchDeleteError, bool) {
	var be *BatchDeleteError
	ok := errors.As(err, &be)

	return be, ok
}
