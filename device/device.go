// Package device holds the narrow interfaces the trap dispatcher and the
// file table's device variant need against the PLIC, UART, virtio disk,
// and character devices, plus small in-memory fakes implementing them.
// The real drivers are out of scope; original_source/kernel/trap.c's
// devintr() is the contract the interrupt interfaces stand in for (claim
// an IRQ, dispatch by source, complete), and original_source/kernel/
// file.c's devsw[major].read/write dispatch is the contract Device_i
// stands in for.
package device

import (
	"sync"

	"rvkernel/defs"
)

// / Plic_i claims and completes platform interrupts.
type Plic_i interface {
	Claim() uint32
	Complete(irq uint32)
}

// / Uart_i services a UART interrupt (a byte arrived or finished
// / transmitting).
type Uart_i interface {
	Intr()
}

// / VirtioDisk_i services a completed disk request.
type VirtioDisk_i interface {
	Intr()
}

// / FakePlic_t is an in-memory Plic_i that dispenses IRQs from a queue,
// / for tests that drive the trap dispatcher's device-interrupt path
// / without real hardware.
type FakePlic_t struct {
	Pending   []uint32
	Completed []uint32
}

func (p *FakePlic_t) Claim() uint32 {
	if len(p.Pending) == 0 {
		return 0
	}
	irq := p.Pending[0]
	p.Pending = p.Pending[1:]
	return irq
}

func (p *FakePlic_t) Complete(irq uint32) {
	p.Completed = append(p.Completed, irq)
}

// / FakeUart_t counts how many times it was serviced.
type FakeUart_t struct{ Intrs int }

func (u *FakeUart_t) Intr() { u.Intrs++ }

// / FakeVirtio_t counts how many times it was serviced.
type FakeVirtio_t struct{ Intrs int }

func (v *FakeVirtio_t) Intr() { v.Intrs++ }

// / Device_i is a readable/writable character device, the contract a
// / KindDevice file object dispatches Read/Write through. This is the
// / idiomatic-Go stand-in for devsw[major] — the file object stores the
// / interface value directly instead of indexing a global table by major
// / number. The major number itself is still carried on the file object
// / (File_t.Major), but File_t.Read/Write do not range-check it; they
// / dispatch straight through the stored Device_i.
type Device_i interface {
	Read(dst []byte) (int, defs.Err_t)
	Write(src []byte) (int, defs.Err_t)
}

// / ConsoleDevice_t stands in for D_CONSOLE: writes accumulate into Out
// / (in place of a real UART transmit), reads are unsupported since there
// / is no keyboard/input source to drive in this environment.
type ConsoleDevice_t struct {
	mu  sync.Mutex
	Out []byte
}

func (c *ConsoleDevice_t) Read(dst []byte) (int, defs.Err_t) {
	return 0, defs.EINVAL
}

func (c *ConsoleDevice_t) Write(src []byte) (int, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Out = append(c.Out, src...)
	return len(src), defs.Success
}

// / DevNullDevice_t stands in for D_DEVNULL: discards every write and
// / reads as empty, matching /dev/null.
type DevNullDevice_t struct{}

func (DevNullDevice_t) Read(dst []byte) (int, defs.Err_t)  { return 0, defs.Success }
func (DevNullDevice_t) Write(src []byte) (int, defs.Err_t) { return len(src), defs.Success }
