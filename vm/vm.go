// Package vm implements the per-process virtual memory area table: mmap,
// munmap, the page-fault handler's classification and servicing, and the
// vmacopy fork hook. This is the centerpiece collaborator described
// across original_source/kernel/file.c (mmap/munmap/vmacopy) and
// original_source/kernel/trap.c (usertrap's page-fault branch), adapted
// from the lock/placement/refcount discipline of biscuit's
// vm.Vm_t/Sys_pgfault/Page_insert in src/vm/as.go.
package vm

import (
	"sync"

	"rvkernel/defs"
	"rvkernel/filetable"
	"rvkernel/mem"
	"rvkernel/pgtbl"
	"rvkernel/util"
)

// / Vma_t is one virtual memory area: a contiguous, page-aligned range
// / backed by a file, materialized lazily one page at a time.
type Vma_t struct {
	Used       bool
	AddrBegin  uintptr
	Length     uintptr
	Prot       defs.Prot_t
	Flags      defs.MapFlags_t
	MappedFile *filetable.File_t
	Offset     int64
}

// / Vm_t is one process's virtual memory state: its VMA table plus the
// / page table and shared collaborators (frame allocator, file table) it
// / is edited against. Lock ordering follows biscuit's Vm_t: callers
// / acquire the Vm_t before touching the Vma_t slots or the page table.
type Vm_t struct {
	mu     sync.Mutex
	Vmas   [defs.MAX_VMAS]Vma_t
	Pgtbl  *pgtbl.Table_t
	Frames *mem.FrameStore_t
	Files  *filetable.Table_t
}

// / New constructs a process's virtual memory state sharing the given
// / system-wide frame allocator and file table.
func New(frames *mem.FrameStore_t, files *filetable.Table_t) *Vm_t {
	return &Vm_t{
		Pgtbl:  pgtbl.NewTable(),
		Frames: frames,
		Files:  files,
	}
}

const ceiling = uintptr(defs.MAXVA - 2*defs.PGSIZE)

// / Mmap reserves a VMA slot, dups the file, and returns the chosen
// / address. No page-table entries are created; the mapping materializes
// / only through PageFault.
func (vm *Vm_t) Mmap(length uintptr, prot defs.Prot_t, flags defs.MapFlags_t, file *filetable.File_t, offset int64) (uintptr, defs.Err_t) {
	if length == 0 || length%defs.PGSIZE != 0 {
		return 0, defs.EINVAL
	}
	if flags&defs.MAP_SHARED != 0 && prot&defs.PROT_WRITE != 0 && !file.Writable {
		return 0, defs.EINVAL
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	slot := -1
	lowest := ceiling
	for i := range vm.Vmas {
		if !vm.Vmas[i].Used && slot == -1 {
			slot = i
		}
		if vm.Vmas[i].Used && vm.Vmas[i].AddrBegin < lowest {
			lowest = vm.Vmas[i].AddrBegin
		}
	}
	if slot == -1 {
		return 0, defs.ENOMEM
	}
	if length > lowest {
		return 0, defs.ENOMEM
	}
	addrBegin := lowest - length

	vm.Files.Dup(file)
	vm.Vmas[slot] = Vma_t{
		Used:       true,
		AddrBegin:  addrBegin,
		Length:     length,
		Prot:       prot,
		Flags:      flags,
		MappedFile: file,
		Offset:     offset,
	}
	return addrBegin, defs.Success
}

// findVMA returns the index of the used VMA covering va, or -1.
func (vm *Vm_t) findVMA(va uintptr) int {
	for i := range vm.Vmas {
		v := &vm.Vmas[i]
		if v.Used && va >= v.AddrBegin && va < v.AddrBegin+v.Length {
			return i
		}
	}
	return -1
}

// findVMACovering returns the index of the used VMA whose range covers
// [addr, addr+length), or -1.
func (vm *Vm_t) findVMACovering(addr, length uintptr) int {
	for i := range vm.Vmas {
		v := &vm.Vmas[i]
		if v.Used && addr >= v.AddrBegin && addr+length <= v.AddrBegin+v.Length {
			return i
		}
	}
	return -1
}

// / Munmap unmaps [addr, addr+length) from a VMA, trimming from one end only.
func (vm *Vm_t) Munmap(addr, length uintptr) defs.Err_t {
	if length == 0 || addr%defs.PGSIZE != 0 || length%defs.PGSIZE != 0 {
		return defs.EINVAL
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx := vm.findVMACovering(addr, length)
	if idx == -1 {
		return defs.EINVAL
	}
	v := &vm.Vmas[idx]

	trimLow := addr == v.AddrBegin
	trimHigh := addr+length == v.AddrBegin+v.Length
	if !trimLow && !trimHigh {
		return defs.EINVAL
	}

	if v.Flags&defs.MAP_SHARED != 0 {
		fileOff := v.Offset + int64(addr-v.AddrBegin)
		if err := vm.writeback(v, addr, length, fileOff); err != defs.Success {
			return err
		}
	}

	for off := uintptr(0); off < length; off += defs.PGSIZE {
		va := addr + off
		pa, ok := vm.Pgtbl.Walkaddr(va)
		if !ok {
			continue
		}
		vm.Pgtbl.Unmap(va)
		vm.Frames.Refdown(pa)
	}

	if trimLow {
		v.AddrBegin += length
		v.Offset += int64(length)
	}
	v.Length -= length

	if v.Length == 0 {
		vm.Files.Close(v.MappedFile)
		vm.Vmas[idx] = Vma_t{}
	}
	return defs.Success
}

// writeback copies the faulted-in contents of [addr, addr+length) back to
// the file at fileOff in as few log transactions as possible: it
// accumulates contiguous materialized pages into one buffer and flushes
// it with a single Writei call (one transaction) once the buffer would
// exceed defs.WriteChunk, rather than opening a transaction per page.
// This matches munmap's "write the affected range back ... inside one
// log transaction" requirement for the common case of a range no larger
// than one chunk, and falls back to filewrite's multi-transaction
// chunking loop only once a range genuinely exceeds the log's
// per-transaction budget. A page that was never faulted in breaks the
// run and flushes whatever was pending, since there is nothing to write
// back for it and the next present page is not contiguous with the last.
func (vm *Vm_t) writeback(v *Vma_t, addr, length uintptr, fileOff int64) defs.Err_t {
	var buf []byte
	var bufOff int64

	flush := func() defs.Err_t {
		if len(buf) == 0 {
			return defs.Success
		}
		_, err := v.MappedFile.Ip.Writei(buf, int(bufOff))
		buf = buf[:0]
		return err
	}

	for off := uintptr(0); off < length; off += defs.PGSIZE {
		va := addr + off
		pa, ok := vm.Pgtbl.Walkaddr(va)
		if !ok {
			if err := flush(); err != defs.Success {
				return err
			}
			continue // never faulted in, nothing to write back
		}

		if len(buf) == 0 {
			bufOff = fileOff + int64(off)
		}
		page := vm.Frames.Bytes(pa)
		buf = append(buf, page[:]...)

		if len(buf) >= defs.WriteChunk {
			if err := flush(); err != defs.Success {
				return err
			}
		}
	}
	return flush()
}

// / PageFault services a page fault at va
// / (rounded down to a page by the caller, i.e. the trap dispatcher);
// / isWrite distinguishes a store fault from a load fault. It returns
// / false if the fault is not serviceable and the process must be killed.
func (vm *Vm_t) PageFault(va uintptr, isWrite bool) bool {
	va = util.Rounddown(va, uintptr(defs.PGSIZE))

	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx := vm.findVMA(va)
	if idx == -1 {
		return false
	}
	v := &vm.Vmas[idx]

	if v.Prot == defs.PROT_NONE {
		return false
	}
	if !isWrite && v.Prot&defs.PROT_READ == 0 {
		return false
	}
	if isWrite && v.Prot&defs.PROT_WRITE == 0 {
		return false
	}

	pa, present := vm.Pgtbl.Walkaddr(va)
	if !present {
		return vm.lazyFault(v, va)
	}
	return vm.cowFault(v, va, pa)
}

// lazyFault services step 4: the very first access to a page of v.
func (vm *Vm_t) lazyFault(v *Vma_t, va uintptr) bool {
	pa, ok := vm.Frames.Alloc()
	if !ok {
		return false
	}
	page := vm.Frames.Bytes(pa)

	fileOff := v.Offset + int64(va-v.AddrBegin)
	v.MappedFile.Ip.Readi(page[:], int(fileOff))
	// a short read leaves the remainder of the frame zeroed, matching a
	// demand-paged mapping that extends past EOF.

	perm := pgtbl.PTE_U
	if v.Prot&defs.PROT_WRITE != 0 {
		perm |= pgtbl.PTE_W
	}
	vm.Pgtbl.Map(va, pa, perm)
	return true
}

// cowFault services step 5: a present mapping that the VMA permits
// writing to but whose PTE is not marked writable.
func (vm *Vm_t) cowFault(v *Vma_t, va uintptr, pa mem.Pa_t) bool {
	if vm.Pgtbl.Writable(va) {
		return true
	}
	if v.Prot&defs.PROT_WRITE == 0 {
		return false
	}

	if vm.Frames.Refcnt(pa) == 1 {
		vm.Pgtbl.Remap(va, pa, pgtbl.PTE_U|pgtbl.PTE_W)
		return true
	}

	newPa, ok := vm.Frames.Alloc()
	if !ok {
		return false
	}
	*vm.Frames.Bytes(newPa) = *vm.Frames.Bytes(pa)
	vm.Frames.Refdown(pa)
	vm.Pgtbl.Unmap(va)
	vm.Pgtbl.Map(va, newPa, pgtbl.PTE_U|pgtbl.PTE_W)
	return true
}

// / Vmacopy is called after the child's page table
// / already holds the copy-up-to-sbrk mapping performed by the generic
// / fork routine. It duplicates every used VMA of the parent into the
// / child at the same index, establishing COW sharing for every page
// / already materialized in the parent.
func (vm *Vm_t) Vmacopy(child *Vm_t) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	child.mu.Lock()
	defer child.mu.Unlock()

	for i := range vm.Vmas {
		v := &vm.Vmas[i]
		if !v.Used {
			continue
		}
		vm.Files.Dup(v.MappedFile)
		child.Vmas[i] = *v

		for off := uintptr(0); off < v.Length; off += defs.PGSIZE {
			va := v.AddrBegin + off
			pa, ok := vm.Pgtbl.Walkaddr(va)
			if !ok {
				continue
			}
			vm.Frames.Refup(pa)

			childPerm := pgtbl.PTE_U
			child.Pgtbl.Map(va, pa, childPerm)

			if vm.Pgtbl.Writable(va) {
				vm.Pgtbl.Remap(va, pa, pgtbl.PTE_U)
			}
		}
	}
}
