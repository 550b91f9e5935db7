package nimbusdb

import (
	"github.com/pkg/errors"

	"github.com/nimbusdb/nimbusdb/internal/collection"
	"github.com/nimbusdb/nimbusdb/internal/index"
)

// Error kinds the library API returns. Several wrap a sentinel already
// defined by an inner package rather than declaring a second one, so
// errors.Is works against either the root-package name or the originating
// package's own error value.
var (
	// ErrInvalidCollectionName is returned by collection_ensure/rename for
	// a name that isn't a valid collection identifier (empty, or
	// containing a path separator).
	ErrInvalidCollectionName = errors.New("nimbusdb: invalid collection name")

	// ErrCollectionNotFound is returned by any operation naming a
	// collection that hasn't been created with collection_ensure.
	ErrCollectionNotFound = collection.ErrNotFound

	// ErrTargetCollectionExists is returned by collection_rename when
	// newName already names a live collection.
	ErrTargetCollectionExists = errors.New("nimbusdb: target collection already exists")

	// ErrInvalidIndexMode is returned by index_ensure for an IndexMode
	// value outside the declared String/I64/F64 kinds.
	ErrInvalidIndexMode = errors.New("nimbusdb: invalid index mode")

	// ErrMismatchedIndexUniqueness is returned by index_ensure when an
	// index already exists at path with a different value kind or a
	// different unique/duplicate setting than requested.
	ErrMismatchedIndexUniqueness = index.ErrIndexExists

	// ErrUniqueIndexViolation is returned by put/put_with_id/patch when a
	// write would create a second entry under an already-present key in a
	// unique index.
	ErrUniqueIndexViolation = index.ErrUniqueIndexViolation

	// ErrIndexNotFound is returned by index_remove for an undeclared path.
	ErrIndexNotFound = index.ErrIndexNotFound

	// ErrDocumentNotFound is returned by get/patch for an id with no
	// matching document.
	ErrDocumentNotFound = errors.New("nimbusdb: document not found")

	// ErrPatchNotObject is returned by patch when the supplied patch
	// document isn't itself a JSON/BSON object, since merge-patch is only
	// defined over object-to-object merges.
	ErrPatchNotObject = errors.New("nimbusdb: patch document must be an object")
)

func validCollectionName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
