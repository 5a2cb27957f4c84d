package xmss

import (
	"encoding/binary"
	"os"

	"github.com/cespare/xxhash"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/templexxx/xorsimd"
)

// nodecache.go implements an optional, ephemeral cache of recomputed
// Merkle tree nodes, keyed by (height, index). Authentication-path
// generation for a large H recomputes large subtrees repeatedly as the
// signer advances through leaves; this cache amortizes that cost, per
// spec section 4.5's allowance for a "TreeHash/BDS-style scheduler".
//
// It is backed by an open-addressed table in a memory-mapped scratch
// file, generalizing the teacher's container.go subtree cache (which
// mmaps whole precomputed subtrees keyed by SubTreeAddress) to a flat
// per-node table keyed by a cespare/xxhash digest of (height, index),
// since this scheme has no subtree/address layer to key off of.

const nodeCacheEntrySize = 1 + 4 + 4 + N // occupied flag, height, index, node

// NodeCache is a fixed-capacity, mmap-backed cache of Merkle nodes. The
// zero value is not valid; use NewNodeCache. A NodeCache is not safe for
// concurrent use by multiple goroutines without external locking.
type NodeCache struct {
	file *os.File
	path string
	buf  mmap.MMap
	slots int
}

// NewNodeCache creates a scratch file at path sized for slots entries and
// memory-maps it. The file is removed from the directory as soon as it
// has been sized and mapped -- its storage then lives only as long as
// the mapping and descriptor, which Close releases -- so a crash after
// NewNodeCache returns leaves no stray cache file behind.
func NewNodeCache(path string, slots int) (*NodeCache, Error) {
	if slots <= 0 {
		return nil, errorf(KindInvalidParameters, "node cache must have at least one slot")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, wrapErrorf(KindIoFailure, err, "failed to create node cache file %s", path)
	}

	size := int64(slots) * int64(nodeCacheEntrySize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, wrapErrorf(KindIoFailure, err, "failed to size node cache file %s", path)
	}

	buf, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, wrapErrorf(KindIoFailure, err, "failed to mmap node cache file %s", path)
	}

	os.Remove(path) // unlinked, but the fd keeps the storage alive until Close

	return &NodeCache{file: f, path: path, buf: buf, slots: slots}, nil
}

func (c *NodeCache) bucket(height, index uint32) int {
	var key [8]byte
	binary.LittleEndian.PutUint32(key[0:4], height)
	binary.LittleEndian.PutUint32(key[4:8], index)
	return int(xxhash.Sum64(key[:]) % uint64(c.slots))
}

// Get returns the cached node for (height, index), if present.
func (c *NodeCache) Get(height, index uint32) ([]byte, bool) {
	start := c.bucket(height, index)
	for probe := 0; probe < c.slots; probe++ {
		slot := (start + probe) % c.slots
		entry := c.entry(slot)
		if entry[0] == 0 {
			return nil, false // empty slot: probe chain ends here
		}
		if binary.LittleEndian.Uint32(entry[1:5]) == height &&
			binary.LittleEndian.Uint32(entry[5:9]) == index {
			node := make([]byte, N)
			copy(node, entry[9:9+N])
			return node, true
		}
	}
	return nil, false
}

// Put stores node under (height, index) in the first empty slot along
// its probe sequence; if every slot is occupied, it overwrites the entry
// in the start slot.
func (c *NodeCache) Put(height, index uint32, node []byte) {
	start := c.bucket(height, index)
	for probe := 0; probe < c.slots; probe++ {
		slot := (start + probe) % c.slots
		entry := c.entry(slot)
		if entry[0] == 0 {
			entry[0] = 1
			binary.LittleEndian.PutUint32(entry[1:5], height)
			binary.LittleEndian.PutUint32(entry[5:9], index)
			copy(entry[9:9+N], node)
			return
		}
	}
	// Table full along this probe chain: overwrite the start slot rather
	// than growing. Losing a cached node only costs a recomputation, never
	// correctness.
	entry := c.entry(start)
	entry[0] = 1
	binary.LittleEndian.PutUint32(entry[1:5], height)
	binary.LittleEndian.PutUint32(entry[5:9], index)
	copy(entry[9:9+N], node)
}

func (c *NodeCache) entry(slot int) []byte {
	off := slot * nodeCacheEntrySize
	return c.buf[off : off+nodeCacheEntrySize]
}

// Close wipes every cached node from the backing pages, unmaps them and
// closes the underlying file. Cached nodes are not secret, but the
// buffer may still hold tree fragments after a signer's private key is
// closed, so it is wiped on the same SecureZero discipline as
// everything else derived from the master seed (spec section 4.8).
func (c *NodeCache) Close() error {
	xorsimd.Bytes(c.buf, c.buf, c.buf)
	if err := c.buf.Unmap(); err != nil {
		c.file.Close()
		return wrapErrorf(KindIoFailure, err, "failed to unmap node cache")
	}
	return c.file.Close()
}
