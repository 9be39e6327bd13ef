// Package fs implements the on-disk-shaped state the file table's inode
// variant reads and writes through: a block device contract, a
// begin_op/end_op transaction log, and an in-memory inode with bounded
// chunked writes. Grounded on biscuit/src/fs/blk.go's Disk_i shape and on
// original_source/kernel/file.c's begin_op/end_op/ilock/iunlock/
// writei/readi discipline.
package fs

import (
	"sync"

	"rvkernel/defs"
)

// / Disk_i is the block device contract: read and write one BSIZE block.
// / A real kernel backs this with virtio; this module backs it with a
// / fixed-size in-memory array so log and inode logic are testable without
// / hardware.
type Disk_i interface {
	ReadBlock(block int) [defs.BSIZE]byte
	WriteBlock(block int, data [defs.BSIZE]byte)
}

// / MemDisk_t is an in-memory Disk_i with a fixed block count.
type MemDisk_t struct {
	mu     sync.Mutex
	blocks [][defs.BSIZE]byte
}

// / NewMemDisk constructs a disk of the given block count, all zeroed.
func NewMemDisk(nblocks int) *MemDisk_t {
	return &MemDisk_t{blocks: make([][defs.BSIZE]byte, nblocks)}
}

func (d *MemDisk_t) ReadBlock(block int) [defs.BSIZE]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if block < 0 || block >= len(d.blocks) {
		panic("fs: ReadBlock out of range")
	}
	return d.blocks[block]
}

func (d *MemDisk_t) WriteBlock(block int, data [defs.BSIZE]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if block < 0 || block >= len(d.blocks) {
		panic("fs: WriteBlock out of range")
	}
	d.blocks[block] = data
}
