package nimbusdb

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/pkg/errors"

	"github.com/nimbusdb/nimbusdb/internal/collection"
	"github.com/nimbusdb/nimbusdb/internal/config"
	"github.com/nimbusdb/nimbusdb/internal/driver"
	"github.com/nimbusdb/nimbusdb/internal/logging"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// DB is an open database: one directory holding zero or more collections,
// each with its own documents and declared secondary indexes, plus the
// logger/archiver a long-running host wires up per its configuration.
// It is the single long-lived object an embedding process constructs and
// calls every operation through.
type DB struct {
	registry *collection.Registry
	driver   *driver.Driver
	logger   logging.Logger
	archive  *logging.LogArchive
	cfg      *config.Config
}

// Open opens the database directory named by cfg.Storage.DataDir,
// creating it if this is the first time it's been opened, and wires
// logging/archiving per cfg.Logging/cfg.Archive. A nil cfg uses
// config.DefaultConfig().
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errs[0]
	}

	logger, archive, err := logging.NewRotating(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, logging.ArchiveConfig{
		Enabled:    cfg.Archive.Enabled,
		ArchiveDir: cfg.Archive.Dir,
		MaxAge:     cfg.Archive.MaxAge,
		MaxSize:    cfg.Archive.MaxSize,
		Compress:   cfg.Archive.Compress,
		RetainDays: cfg.Archive.RetainDays,
	})
	if err != nil {
		return nil, errors.Wrap(err, "nimbusdb: opening logger")
	}

	registry, err := collection.OpenRegistry(cfg.Storage.DataDir)
	if err != nil {
		return nil, errors.Wrapf(err, "nimbusdb: opening %s", cfg.Storage.DataDir)
	}

	return &DB{
		registry: registry,
		driver:   driver.New(registry, logger),
		logger:   logger,
		archive:  archive,
		cfg:      cfg,
	}, nil
}

// Close closes every open collection's backing files. It does not flush
// the archive side channel, since rotation runs on file-size/age
// triggers rather than an explicit flush point.
func (db *DB) Close() error {
	return db.registry.Close()
}

// EnsureCollection creates the named collection if it doesn't already
// exist, returning no error either way. Matches
// collection_ensure.
func (db *DB) EnsureCollection(name string) error {
	if !validCollectionName(name) {
		return ErrInvalidCollectionName
	}
	_, err := db.registry.Ensure(name)
	return err
}

// RemoveCollection drops a collection and every document and index it
// holds. Matches collection_remove.
func (db *DB) RemoveCollection(name string) error {
	return db.registry.Remove(name)
}

// RenameCollection renames a collection in place, preserving every
// document and index it holds. Matches collection_rename.
func (db *DB) RenameCollection(oldName, newName string) error {
	if !validCollectionName(newName) {
		return ErrInvalidCollectionName
	}
	if _, exists := db.registry.Get(newName); exists {
		return ErrTargetCollectionExists
	}
	return db.registry.Rename(oldName, newName)
}

// Collections lists every collection name currently open.
func (db *DB) Collections() []string {
	return db.registry.List()
}

func (db *DB) collection(name string) (*collection.Collection, error) {
	c, ok := db.registry.Get(name)
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return c, nil
}

// Put inserts doc into coll under a freshly generated object id, indexing
// it against every index already declared on the collection. Matches
// put().
func (db *DB) Put(coll string, doc value.Value) (bson.ObjectID, error) {
	id := value.NewObjectID()
	if err := db.PutWithID(coll, id, doc); err != nil {
		return bson.ObjectID{}, err
	}
	return id, nil
}

// PutWithID inserts doc into coll under the caller-supplied id, replacing
// any existing document at that id. Matches put_with_id().
func (db *DB) PutWithID(coll string, id bson.ObjectID, doc value.Value) error {
	c, err := db.collection(coll)
	if err != nil {
		return err
	}

	c.Lock.Lock()
	defer c.Lock.Unlock()

	old, existed, err := c.Primary.Get(id)
	if err != nil {
		return err
	}
	if err := c.Primary.Put(id, doc); err != nil {
		return err
	}

	if existed {
		if err := c.Indexes.UpdateDoc(id, old, doc); err != nil {
			_ = c.Primary.Put(id, old)
			return err
		}
		return nil
	}
	if err := c.Indexes.InsertDoc(id, doc); err != nil {
		_ = c.Primary.Delete(id)
		return err
	}
	return nil
}

// Get returns the document stored at id in coll. Matches get().
func (db *DB) Get(coll string, id bson.ObjectID) (value.Value, error) {
	c, err := db.collection(coll)
	if err != nil {
		return value.Value{}, err
	}

	c.Lock.RLock()
	defer c.Lock.RUnlock()

	doc, ok, err := c.Primary.Get(id)
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return value.Value{}, ErrDocumentNotFound
	}
	return doc, nil
}

// Del deletes the document at id in coll, along with its entries in every
// declared index. Deleting an id that doesn't exist is a no-op. Matches
// del().
func (db *DB) Del(coll string, id bson.ObjectID) error {
	c, err := db.collection(coll)
	if err != nil {
		return err
	}

	c.Lock.Lock()
	defer c.Lock.Unlock()

	old, existed, err := c.Primary.Get(id)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := c.Primary.Delete(id); err != nil {
		return err
	}
	return c.Indexes.RemoveDoc(id, old)
}
