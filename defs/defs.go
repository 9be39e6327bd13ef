// Package defs holds the sentinel error type, permission/flag bitsets, the
// kernel-wide size constants, and the device major numbers shared by every
// other package.
package defs

// / Err_t is the kernel's sentinel error type. Zero means success; callers
// / return one of the positive codes below (e.g. EINVAL) on failure.
type Err_t int

// / Success is the zero value returned on success.
const Success Err_t = 0

// Sentinel error codes returned by the mmap/munmap/file-table paths.
const (
	EFAULT       Err_t = 1 /// bad address / access outside any VMA
	ENOMEM       Err_t = 2 /// out of physical frames or VMA slots
	EINVAL       Err_t = 3 /// bad argument
	ENAMETOOLONG Err_t = 4 /// path or string exceeded its bound
	EMFILE       Err_t = 5 /// file table exhausted
	ENOHEAP      Err_t = 6 /// resource accounting exhausted
	EPIPE        Err_t = 7 /// write to a pipe whose read end has closed
)

// / Tid_t identifies the kernel thread handling a trap (one per faulting CPU).
type Tid_t int

// / Pid_t identifies a process.
type Pid_t int

// / Prot_t is the VMA permission bitset requested by mmap.
type Prot_t uint

const (
	PROT_NONE  Prot_t = 0x0 /// no access permitted
	PROT_READ  Prot_t = 0x1 /// page may be read
	PROT_WRITE Prot_t = 0x2 /// page may be written
)

// / MapFlags_t is the mmap sharing-mode bitset.
type MapFlags_t uint

const (
	MAP_SHARED  MapFlags_t = 0x1 /// writes are visible to other mappers and the file
	MAP_PRIVATE MapFlags_t = 0x2 /// writes are private, COW on fork
)

// Page geometry and kernel-wide size budgets. These mirror the xv6-riscv
// constants xv6-riscv uses; see
// original_source/kernel/memlayout.h.
const (
	PGSHIFT = 12           /// log2(PGSIZE)
	PGSIZE  = 1 << PGSHIFT /// bytes per page

	// MAXVA is one bit less than Sv39 allows, so virtual addresses with
	// the high bit set never need sign extension.
	MAXVA = 1 << (9 + 9 + 9 + PGSHIFT - 1)

	MAX_VMAS  = 16 /// per-process VMA table capacity
	MAX_CPUS  = 8  /// platform descriptor CPU slot capacity
	MAX_DEPTH = 10 /// DTB node nesting bound

	NFILE = 256 /// system-wide open file table capacity

	BSIZE       = 4096 /// on-disk block size in bytes
	MAXOPBLOCKS = 10   /// max blocks any single log transaction may touch
)

// / WriteChunk is the largest write any single log transaction may cover,
// / leaving slop for the inode, indirect, and allocation blocks that
// / transaction also touches. Mirrors
// / original_source/kernel/file.c's `((MAXOPBLOCKS-1-1-2)/2)*BSIZE`.
const WriteChunk = ((MAXOPBLOCKS - 1 - 1 - 2) / 2) * BSIZE

// / Device major numbers for the file table's "device" variant.
const (
	D_CONSOLE int = 1 /// console device
	D_DEVNULL int = 2 /// /dev/null sink
	D_FIRST       = D_CONSOLE /// lowest device number
	D_LAST        = D_DEVNULL /// highest device number
)

// / Stat_t is the metadata `stat` reports, trimmed to what this design
// / tracks — no device/inode numbers, since there is no on-disk inode
// / table backing this module's in-memory files.
type Stat_t struct {
	Size int64
}
