// Package mem implements the physical-frame allocator and reference
// counter: the "page-frame refcount" collaborator. A frame
// is freed back to the allocator when its refcount reaches zero; the
// invariant maintained across the whole kernel is that the sum of a
// frame's refcount equals the number of page-table entries (across every
// process) that map it.
//
// There is no real physical RAM backing this implementation — it is a
// teaching-grade simulation, grounded on the shape of biscuit's
// mem.Physmem_t (Pa_t, Refup/Refdown/Refcnt naming, atomic refcounts) but
// storing frame bytes in a Go map instead of manipulating unsafe.Pointers
// into real memory, so the fault handler and mmap subsystem are
// unit-testable without hardware.
package mem

import (
	"sync"
	"sync/atomic"

	"rvkernel/defs"
)

// / Pa_t is a physical frame address: an opaque, page-aligned key into the
// / frame store.
type Pa_t uintptr

// / Page_t is the fixed-size byte contents of one physical frame.
type Page_t [defs.PGSIZE]byte

// / Frame_t is one physical frame: its contents plus its reference count.
type Frame_t struct {
	Data    Page_t
	refcnt  atomic.Int32
}

// / FrameStore_t is the system-wide physical frame allocator. Refup/Refdown
// / may be called from any context (vmacopy runs on the forking thread
// / while the child isn't yet running); the refcount itself is
// / atomic so no additional lock is needed for it.
type FrameStore_t struct {
	mu     sync.Mutex
	frames map[Pa_t]*Frame_t
	nextPa Pa_t
}

// / NewFrameStore constructs an empty frame store.
func NewFrameStore() *FrameStore_t {
	return &FrameStore_t{
		frames: make(map[Pa_t]*Frame_t),
		nextPa: Pa_t(defs.PGSIZE), // keep 0 reserved as a "no frame" sentinel
	}
}

// / Alloc reserves a fresh, zeroed frame with refcount 1 and returns its
// / address. It returns ok=false if the store has no more room (this
// / simulation never actually runs out; the boolean exists so callers
// / follow the same "allocation failure is possible" discipline real
// / kernels need).
func (fs *FrameStore_t) Alloc() (Pa_t, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	pa := fs.nextPa
	fs.nextPa += defs.PGSIZE
	f := &Frame_t{}
	f.refcnt.Store(1)
	fs.frames[pa] = f
	return pa, true
}

// / Refup increments pa's reference count. pa must already be a live frame.
func (fs *FrameStore_t) Refup(pa Pa_t) {
	f := fs.lookup(pa)
	f.refcnt.Add(1)
}

// / Refdown decrements pa's reference count and, if it reaches zero, frees
// / the frame back to the allocator. It returns true if the frame was
// / freed.
func (fs *FrameStore_t) Refdown(pa Pa_t) bool {
	f := fs.lookup(pa)
	if f.refcnt.Add(-1) == 0 {
		fs.mu.Lock()
		delete(fs.frames, pa)
		fs.mu.Unlock()
		return true
	}
	return false
}

// / Refcnt returns pa's current reference count.
func (fs *FrameStore_t) Refcnt(pa Pa_t) int32 {
	return fs.lookup(pa).refcnt.Load()
}

// / Bytes returns the mutable contents of the frame at pa.
func (fs *FrameStore_t) Bytes(pa Pa_t) *Page_t {
	return &fs.lookup(pa).Data
}

func (fs *FrameStore_t) lookup(pa Pa_t) *Frame_t {
	fs.mu.Lock()
	f, ok := fs.frames[pa]
	fs.mu.Unlock()
	if !ok {
		panic("mem: refcount operation on unknown frame")
	}
	return f
}

// / Live reports the number of frames currently allocated. Used by tests to
// / check that mmap/munmap/vmacopy never leak frames.
func (fs *FrameStore_t) Live() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.frames)
}
