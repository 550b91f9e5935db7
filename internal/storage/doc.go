// Package storage provides the core storage engine components for nimbusdb,
// an embeddable document database.
//
// # Overview
//
// The package implements a paged file format with:
//
//   - A fixed-size page layout (PageManager) backed by a single data file
//   - Free space tracking and page reuse (FreeList)
//   - A pinned buffer pool with LRU eviction for hot pages (BufferPool, LRUCache)
//   - A memory-mapped, growable view of a file (MmapManager); PageManager
//     itself uses ordinary file reads and writes
//   - CRC32-checked file headers with a versioned on-disk layout (FileHeader)
//
// Secondary attribute indexes are built on top of this page layer by the
// btree subpackage, which implements an on-disk B+ tree keyed by an
// arbitrary ordered value.
//
// # Opening a data file
//
//	pm, err := storage.OpenPageManager(path, storage.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer pm.Close()
//
// # Allocating and writing pages
//
//	id, err := pm.AllocatePage(storage.PageTypeData)
//	if err != nil {
//	    return err
//	}
//	page := storage.NewPage(id, storage.PageTypeData)
//	copy(page.Data[:], payload)
//	if err := pm.WritePage(page); err != nil {
//	    return err
//	}
//
// # Reading pages back
//
//	page, err := pm.ReadPage(id)
//	if err != nil {
//	    return err
//	}
//
// Pages no longer needed are returned to the free list with FreePage, which
// makes their id available for reuse by a later AllocatePage call.
package storage
