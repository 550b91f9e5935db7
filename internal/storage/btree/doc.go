// Package btree implements a B+ tree data structure for secondary attribute
// indexes on top of the storage package's paged file layer.
//
// # Overview
//
// Secondary indexes accelerate lookups and range scans on a single
// document field. They provide:
//
//   - O(log n) lookup, insertion, and deletion
//   - Efficient range scans via leaf node linking
//   - Page-aligned nodes for disk storage
//
// # Node Structure
//
// B+ tree nodes are stored in 4KB pages:
//
//   - Internal nodes: Keys and child page pointers
//   - Leaf nodes: Keys, values, and sibling pointers
//
// # Usage
//
// Create and use a B+ tree:
//
//	tree, err := btree.NewBPlusTree(pageManager, 0) // 0 selects BPlusOrder
//
//	// Insert an indexed field value pointing at the matching document id
//	err = tree.Insert([]byte("alice@example.com"), btree.EntryRef{DocID: docID})
//
//	// Search for an exact value; every EntryRef stored under it is returned
//	refs, err := tree.Search([]byte("alice@example.com"))
//
//	// Range scan, e.g. for a $gte/$lte query predicate
//	iter := tree.Range([]byte("a"), []byte("z"))
//	defer iter.Close()
//	for {
//	    key, ref, ok := iter.Next()
//	    if !ok {
//	        break
//	    }
//	}
//
// An existing tree is reopened from its root page with
// btree.NewBPlusTreeWithRoot(pageManager, rootPageID, 0).
//
// # Serialization
//
// Nodes are serialized to/from byte slices for disk storage:
//
//	n, err := node.Serialize(buf) // buf must hold node.SerializedSize() bytes
//	err = restored.Deserialize(buf, pageID)
package btree
