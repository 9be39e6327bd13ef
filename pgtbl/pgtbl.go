// Package pgtbl implements the "page-table editor" collaborator:
// installing, looking up, changing the permissions of, and
// removing leaf translations. It is grounded on the PTE bit layout and
// install/remove shape of biscuit's mem.Pmap_t and vm.Page_insert/
// Page_remove, and on how original_source/kernel/trap.c walks a PTE to
// classify a fault (present-but-not-writable, etc).
//
// There is no hardware MMU behind this: a Table_t is a map keyed by
// page-aligned virtual address, each entry holding a physical frame
// address and a permission bitset. That is enough to drive and test the
// fault classification and mmap/munmap logic without real page tables.
package pgtbl

import (
	"sync"

	"rvkernel/defs"
	"rvkernel/mem"
	"rvkernel/util"
)

// / Perm_t is the permission bitset stored in a leaf entry, independent of
// / the defs.Prot_t bits mmap callers request (Perm_t also carries the
// / present/writable/user bits a real PTE would).
type Perm_t uint

const (
	PTE_P Perm_t = 1 << 0 /// present
	PTE_W Perm_t = 1 << 1 /// writable
	PTE_U Perm_t = 1 << 2 /// user-accessible
)

// / PTE_t is one leaf translation: a physical frame plus its permissions.
type PTE_t struct {
	Pa   mem.Pa_t
	Perm Perm_t
}

// / Table_t is one process's page table.
type Table_t struct {
	mu  sync.Mutex
	ptes map[uintptr]PTE_t
}

// / NewTable constructs an empty page table.
func NewTable() *Table_t {
	return &Table_t{ptes: make(map[uintptr]PTE_t)}
}

func pageAlign(va uintptr) uintptr {
	return util.Rounddown(va, uintptr(defs.PGSIZE))
}

// / Map installs a leaf translation for va, which must be page-aligned.
// / It panics if va is already mapped, matching mappages' "remap"
// / panic in original_source/kernel/vm.c-style table editors.
func (t *Table_t) Map(va uintptr, pa mem.Pa_t, perm Perm_t) {
	if va != pageAlign(va) {
		panic("pgtbl: Map called with unaligned va")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ptes[va]; ok {
		panic("pgtbl: remap of already-mapped va")
	}
	t.ptes[va] = PTE_t{Pa: pa, Perm: perm | PTE_P}
}

// / Remap replaces the translation already installed at va, e.g. to flip
// / PTE_W on a COW fast path. It panics if va is not currently mapped.
func (t *Table_t) Remap(va uintptr, pa mem.Pa_t, perm Perm_t) {
	va = pageAlign(va)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ptes[va]; !ok {
		panic("pgtbl: Remap of an unmapped va")
	}
	t.ptes[va] = PTE_t{Pa: pa, Perm: perm | PTE_P}
}

// / Unmap removes the translation at va. It is a no-op if va is not
// / mapped, so munmap racing a fault on the same address is harmless.
func (t *Table_t) Unmap(va uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ptes, pageAlign(va))
}

// / Walk returns the PTE installed at va, if any.
func (t *Table_t) Walk(va uintptr) (PTE_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pte, ok := t.ptes[pageAlign(va)]
	return pte, ok
}

// / Walkaddr returns the physical frame mapped at va, or ok=false if va
// / has no present translation.
func (t *Table_t) Walkaddr(va uintptr) (mem.Pa_t, bool) {
	pte, ok := t.Walk(va)
	if !ok || pte.Perm&PTE_P == 0 {
		return 0, false
	}
	return pte.Pa, true
}

// / Writable reports whether va has a present, writable translation.
func (t *Table_t) Writable(va uintptr) bool {
	pte, ok := t.Walk(va)
	return ok && pte.Perm&PTE_P != 0 && pte.Perm&PTE_W != 0
}
