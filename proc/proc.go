// Package proc implements the minimal per-process state the trap
// dispatcher and fault handler need: a pid, the killed flag checked on
// syscall entry and after trap handling, and the process's virtual
// memory state. The scheduler, context switch, and the rest of struct
// proc are out of scope; this is only the slice of original_source/
// kernel/proc.c's struct proc the core needs a home for.
package proc

import (
	"sync"
	"sync/atomic"

	"rvkernel/defs"
	"rvkernel/filetable"
	"rvkernel/mem"
	"rvkernel/vm"
)

// / Proc_t is one process.
type Proc_t struct {
	Pid    defs.Pid_t
	killed atomic.Bool

	mu sync.Mutex
	Vm *vm.Vm_t
}

var nextPid atomic.Int64

// / New constructs a fresh process sharing the system-wide frame
// / allocator and file table.
func New(frames *mem.FrameStore_t, files *filetable.Table_t) *Proc_t {
	return &Proc_t{
		Pid: defs.Pid_t(nextPid.Add(1)),
		Vm:  vm.New(frames, files),
	}
}

// / Kill sets the killed flag. It is checked on syscall entry and after
// / trap handling; it never interrupts code already running.
func (p *Proc_t) Kill() { p.killed.Store(true) }

// / Killed reports whether Kill has been called.
func (p *Proc_t) Killed() bool { return p.killed.Load() }

// / Fork creates a child process that shares the parent's frame allocator
// / and file table, then runs vmacopy to establish COW sharing over every
// / VMA the parent has mapped. The child's page table is otherwise empty:
// / populating it up to the high-water mark is the generic fork routine's
// / job and is out of scope here, matching the vmacopy contract.
func (p *Proc_t) Fork(frames *mem.FrameStore_t, files *filetable.Table_t) *Proc_t {
	child := New(frames, files)
	p.Vm.Vmacopy(child.Vm)
	return child
}
