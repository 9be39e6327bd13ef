package fs

import (
	"rvkernel/defs"
)

// / Inode_t is an in-memory file: its bytes plus the lock serializing
// / concurrent readers and writers, matching the ilock/iunlock discipline
// / around every readi/writei call in original_source/kernel/file.c.
// / Persistence is modeled by staging each write's backing block through a
// / Log_t rather than by a real block-pointer layout, since this module
// / has no on-disk inode format to maintain.
type Inode_t struct {
	lock Sleeplock_t
	log  *Log_t
	data []byte
}

// / NewInode constructs an empty inode that logs its writes through log.
func NewInode(log *Log_t) *Inode_t {
	return &Inode_t{log: log}
}

// / Size returns the inode's current length in bytes.
func (ip *Inode_t) Size() int {
	ip.lock.Acquire()
	defer ip.lock.Release()
	return len(ip.data)
}

// / Readi copies up to len(dst) bytes starting at off into dst and
// / returns the number of bytes copied. Reading at or past EOF returns 0,
// / not an error, matching readi's short-read behavior.
func (ip *Inode_t) Readi(dst []byte, off int) int {
	ip.lock.Acquire()
	defer ip.lock.Release()
	if off < 0 || off > len(ip.data) {
		return 0
	}
	n := copy(dst, ip.data[off:])
	return n
}

// / Writei writes src at offset off, growing the inode if the write
// / extends past the current end, and stages the touched blocks through
// / the log as one transaction (Writei calls BeginOp/EndOp itself). A
// / write longer than defs.WriteChunk is rejected with EINVAL; callers
// / split larger writes into chunks, the way filewrite does, so each
// / chunk becomes its own bounded transaction.
func (ip *Inode_t) Writei(src []byte, off int) (int, defs.Err_t) {
	if off < 0 {
		return 0, defs.EINVAL
	}
	if len(src) > defs.WriteChunk {
		return 0, defs.EINVAL
	}
	if len(src) == 0 {
		return 0, defs.Success
	}

	ip.lock.Acquire()
	defer ip.lock.Release()

	end := off + len(src)
	if end > len(ip.data) {
		grown := make([]byte, end)
		copy(grown, ip.data)
		ip.data = grown
	}
	copy(ip.data[off:end], src)

	ip.log.BeginOp()
	for blk := off / defs.BSIZE; blk <= (end-1)/defs.BSIZE; blk++ {
		var buf [defs.BSIZE]byte
		copy(buf[:], ip.data[blk*defs.BSIZE:])
		ip.log.Write(blk, buf)
	}
	ip.log.EndOp()

	return len(src), defs.Success
}
