package index

import "github.com/pkg/errors"

// ErrUniqueIndexViolation is returned when a write would create a second
// entry under an already-present key in a unique index. The write that caused it is rolled back across every index
// touched for the document, not just the offending one.
var ErrUniqueIndexViolation = errors.New("index: unique index violation")

func newUniqueViolation(path string) error {
	return errors.Wrapf(ErrUniqueIndexViolation, "path %q", path)
}

// ErrIndexNotFound is returned by Manager.RemoveIndex for an undeclared
// path (Manager.Get reports a miss through its bool result instead).
var ErrIndexNotFound = errors.New("index: not found")

// ErrIndexExists is returned by Manager.EnsureIndex when an index already
// exists at the path with a different kind or mode.
var ErrIndexExists = errors.New("index: already exists with different kind or mode")
