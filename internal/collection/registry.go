package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/index"
	"github.com/nimbusdb/nimbusdb/internal/storage"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// Collection bundles one named collection's primary document store and
// its secondary index manager — the two storage-backed collaborators
// every query execution needs for that collection — plus the
// collection-level lock the execution driver acquires under the
// registry's own database-level lock, as the inner lock of an
// outer-before-inner database-then-collection hierarchy.
type Collection struct {
	Name    string
	Primary *PrimaryStore
	Indexes *index.Manager
	Lock    *sync.RWMutex

	primaryPM *storage.PageManager
	indexPM   *storage.PageManager
}

func (c *Collection) close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(c.Primary.Close())
	record(c.primaryPM.Close())
	record(c.indexPM.Close())
	return firstErr
}

// Registry owns every collection in one database directory: it opens,
// creates, drops, and renames their backing files, and implements
// join.CollectionStore by dispatching a lookup to the named collection's
// PrimaryStore. Each collection gets its own pair of data/index files,
// opened and tracked independently so collections can be created, dropped,
// and renamed without touching any other collection's state.
type Registry struct {
	mu          sync.RWMutex
	dir         string
	collections map[string]*Collection
}

// OpenRegistry opens every collection already present under dir (one
// subdirectory per collection, recognized by its primary.db file) and
// is ready to create new ones via Ensure.
func OpenRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Registry{dir: dir, collections: make(map[string]*Collection)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), "primary.db")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := r.open(e.Name()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) collectionDir(name string) string {
	return filepath.Join(r.dir, name)
}

// Dir returns the database directory the registry was opened over, the
// root internal/backup walks to archive every collection's files.
func (r *Registry) Dir() string { return r.dir }

func (r *Registry) open(name string) (*Collection, error) {
	dir := r.collectionDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	primaryPM, err := storage.OpenPageManager(filepath.Join(dir, "primary.db"), storage.DefaultOptions())
	if err != nil {
		return nil, err
	}
	indexPM, err := storage.OpenPageManager(filepath.Join(dir, "index.db"), storage.DefaultOptions())
	if err != nil {
		primaryPM.Close()
		return nil, err
	}

	primary, err := OpenPrimaryStore(primaryPM, filepath.Join(dir, "docs.log"))
	if err != nil {
		primaryPM.Close()
		indexPM.Close()
		return nil, err
	}
	indexes, err := index.NewManager(indexPM)
	if err != nil {
		primary.Close()
		primaryPM.Close()
		indexPM.Close()
		return nil, err
	}

	c := &Collection{Name: name, Primary: primary, Indexes: indexes, Lock: &sync.RWMutex{}, primaryPM: primaryPM, indexPM: indexPM}
	r.collections[name] = c
	return c, nil
}

// Ensure returns the named collection, creating its backing files if this
// is the first reference to that name.
func (r *Registry) Ensure(name string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.collections[name]; ok {
		return c, nil
	}
	return r.open(name)
}

// DBLock returns the registry's own lock, which the execution driver
// acquires as the database-level outer lock before taking the target
// collection's own Lock as the inner one. It's the same mutex
// Ensure/Remove/Rename already guard the collection directory with, so a
// query's database-level read-lock and a concurrent
// collection_ensure/remove/rename are mutually exclusive.
func (r *Registry) DBLock() *sync.RWMutex { return &r.mu }

// Get returns the named collection without creating it.
func (r *Registry) Get(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	return c, ok
}

// List returns every collection name currently known to the registry.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	return names
}

// ErrNotFound is returned by Remove and Rename for an unknown collection
// name.
var ErrNotFound = fmt.Errorf("collection: not found")

// Remove closes and deletes a collection's backing files entirely.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[name]
	if !ok {
		return ErrNotFound
	}
	if err := c.close(); err != nil {
		return err
	}
	delete(r.collections, name)
	return os.RemoveAll(r.collectionDir(name))
}

// Rename closes a collection, renames its directory, then reopens it
// under the new name.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[oldName]
	if !ok {
		return ErrNotFound
	}
	if _, exists := r.collections[newName]; exists {
		return fmt.Errorf("collection: %q already exists", newName)
	}
	if err := c.close(); err != nil {
		return err
	}
	delete(r.collections, oldName)

	if err := os.Rename(r.collectionDir(oldName), r.collectionDir(newName)); err != nil {
		return err
	}
	_, err := r.open(newName)
	return err
}

// Close closes every open collection's backing files.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, c := range r.collections {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.collections, name)
	}
	return firstErr
}

// lookup backs JoinStore.Get (join.CollectionStore): a point lookup by
// (collection, id), used to resolve $do.<field>.$join clauses during projection. An
// unknown collection name resolves to not-found rather than an error,
// matching a dangling join reference's non-fatal treatment
// (internal/join.Resolver already treats a lookup miss this way).
func (r *Registry) lookup(collection string, id bson.ObjectID) (value.Value, bool, error) {
	c, ok := r.Get(collection)
	if !ok {
		return value.Value{}, false, nil
	}
	return c.Primary.Get(id)
}

// JoinStore adapts the Registry to join.CollectionStore's single-method
// shape, since Registry itself also exposes Get(name) for collection
// lookup and the two Get signatures would otherwise collide.
type JoinStore struct{ Registry *Registry }

// Get implements join.CollectionStore.
func (j JoinStore) Get(collection string, id bson.ObjectID) (value.Value, bool, error) {
	return j.Registry.lookup(collection, id)
}
