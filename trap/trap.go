// Package trap implements the user-space trap dispatcher: classifying
// scause into a syscall, a page fault, or a device interrupt, and gluing
// each to the vm, proc, and device collaborators. Grounded directly on
// original_source/kernel/trap.c's usertrap()/devintr().
package trap

import (
	"fmt"

	"rvkernel/defs"
	"rvkernel/device"
	"rvkernel/proc"
	"rvkernel/util"
)

// scause values usertrap() switches on.
const (
	ScauseSyscall          uint64 = 8
	ScauseLoadPageFault    uint64 = 13
	ScauseStorePageFault   uint64 = 15
	ScauseSupervisorExtIRQ uint64 = 0x8000000000000009
	ScauseSupervisorTimer  uint64 = 0x8000000000000005
)

// / Outcome_t reports what the dispatcher did with one trap, for tests
// / and for the boot loop driving it.
type Outcome_t int

const (
	OutcomeHandled Outcome_t = iota
	OutcomeKilled
	OutcomeYield
)

// / Syscall_i is called on an ecall trap; it returns nothing to Dispatch.
// / The syscall table itself is out of scope.
type Syscall_i func(p *proc.Proc_t)

// / Dispatcher_t wires a process's page-fault handler to the device
// / fakes/drivers and the syscall entry point. UartIRQ/VirtioIRQ come
// / from the platform descriptor the dtb package populates at boot,
// / standing in for xv6's compiled-in UART0_IRQ/VIRTIO0_IRQ constants.
type Dispatcher_t struct {
	Plic    device.Plic_i
	Uart    device.Uart_i
	Virtio  device.VirtioDisk_i
	Syscall Syscall_i

	UartIRQ   uint32
	VirtioIRQ uint32
}

// / Dispatch handles one trap for p with the given scause and faulting
// / address (stval), matching usertrap()'s branch order: syscall first,
// / then the two page-fault causes, then device interrupts, and anything
// / else is an unexpected-cause panic (scause reaching the kernel trap
// / path with no handler is a programmer bug, not a user mistake). The
// / syscall branch checks p.Killed() before running the syscall, not
// / just afterward, matching usertrap's `if(killed(p)) exit(-1)` guard
// / ahead of its call to syscall().
func (d *Dispatcher_t) Dispatch(p *proc.Proc_t, scause uint64, stval uintptr) Outcome_t {
	switch scause {
	case ScauseSyscall:
		if p.Killed() {
			return OutcomeKilled
		}
		if d.Syscall != nil {
			d.Syscall(p)
		}

	case ScauseLoadPageFault, ScauseStorePageFault:
		isWrite := scause == ScauseStorePageFault
		faultVA := util.Rounddown(stval, uintptr(defs.PGSIZE))
		if ok := p.Vm.PageFault(faultVA, isWrite); !ok {
			p.Kill()
			return OutcomeKilled
		}

	case ScauseSupervisorExtIRQ:
		d.devIntr()

	case ScauseSupervisorTimer:
		if p.Killed() {
			return OutcomeKilled
		}
		return OutcomeYield

	default:
		panic(fmt.Sprintf("trap: unexpected scause %#x", scause))
	}

	if p.Killed() {
		return OutcomeKilled
	}
	return OutcomeHandled
}

// devIntr claims one PLIC interrupt and routes it to the owning device,
// matching devintr()'s UART0_IRQ/VIRTIO0_IRQ dispatch.
func (d *Dispatcher_t) devIntr() {
	irq := d.Plic.Claim()
	if irq == 0 {
		return
	}
	switch irq {
	case d.UartIRQ:
		d.Uart.Intr()
	case d.VirtioIRQ:
		d.Virtio.Intr()
	}
	d.Plic.Complete(irq)
}
