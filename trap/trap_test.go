package trap

import (
	"testing"

	"rvkernel/defs"
	"rvkernel/device"
	"rvkernel/filetable"
	"rvkernel/fs"
	"rvkernel/mem"
	"rvkernel/proc"
)

func newTestProc() (*proc.Proc_t, *filetable.File_t) {
	frames := mem.NewFrameStore()
	files := filetable.New()
	disk := fs.NewMemDisk(16)
	log := fs.NewLog(disk)

	f, _ := files.Alloc()
	f.Kind = filetable.KindInode
	f.Readable = true
	f.Writable = true
	f.Ip = fs.NewInode(log)
	f.Ip.Writei(make([]byte, defs.PGSIZE), 0)

	p := proc.New(frames, files)
	return p, f
}

func TestDispatchServicesLazyPageFault(t *testing.T) {
	p, f := newTestProc()
	va, err := p.Vm.Mmap(defs.PGSIZE, defs.PROT_READ|defs.PROT_WRITE, defs.MAP_PRIVATE, f, 0)
	if err != defs.Success {
		t.Fatalf("Mmap failed: %v", err)
	}

	d := &Dispatcher_t{}
	outcome := d.Dispatch(p, ScauseStorePageFault, va)
	if outcome != OutcomeHandled {
		t.Fatalf("Dispatch outcome = %v, want OutcomeHandled", outcome)
	}
	if p.Killed() {
		t.Fatal("process should not be killed by a serviceable fault")
	}
}

func TestDispatchKillsOnFaultOutsideVMA(t *testing.T) {
	p, _ := newTestProc()
	d := &Dispatcher_t{}
	outcome := d.Dispatch(p, ScauseLoadPageFault, 0x1000)
	if outcome != OutcomeKilled {
		t.Fatalf("Dispatch outcome = %v, want OutcomeKilled", outcome)
	}
	if !p.Killed() {
		t.Fatal("expected process to be marked killed")
	}
}

func TestDispatchRoutesSyscall(t *testing.T) {
	p, _ := newTestProc()
	called := false
	d := &Dispatcher_t{Syscall: func(*proc.Proc_t) { called = true }}
	d.Dispatch(p, ScauseSyscall, 0)
	if !called {
		t.Fatal("expected Syscall hook to be invoked")
	}
}

func TestDispatchRoutesDeviceInterrupt(t *testing.T) {
	p, _ := newTestProc()
	plic := &device.FakePlic_t{Pending: []uint32{10}}
	uart := &device.FakeUart_t{}
	virtio := &device.FakeVirtio_t{}
	d := &Dispatcher_t{Plic: plic, Uart: uart, Virtio: virtio, UartIRQ: 10, VirtioIRQ: 1}

	d.Dispatch(p, ScauseSupervisorExtIRQ, 0)
	if uart.Intrs != 1 {
		t.Fatalf("uart.Intrs = %d, want 1", uart.Intrs)
	}
	if virtio.Intrs != 0 {
		t.Fatalf("virtio.Intrs = %d, want 0", virtio.Intrs)
	}
	if len(plic.Completed) != 1 || plic.Completed[0] != 10 {
		t.Fatalf("plic.Completed = %v, want [10]", plic.Completed)
	}
}

func TestDispatchSkipsSyscallWhenAlreadyKilled(t *testing.T) {
	p, _ := newTestProc()
	p.Kill()
	called := false
	d := &Dispatcher_t{Syscall: func(*proc.Proc_t) { called = true }}
	outcome := d.Dispatch(p, ScauseSyscall, 0)
	if called {
		t.Fatal("Syscall hook must not run once the process is marked killed")
	}
	if outcome != OutcomeKilled {
		t.Fatalf("Dispatch outcome = %v, want OutcomeKilled", outcome)
	}
}

func TestDispatchYieldsOnTimer(t *testing.T) {
	p, _ := newTestProc()
	d := &Dispatcher_t{}
	if outcome := d.Dispatch(p, ScauseSupervisorTimer, 0); outcome != OutcomeYield {
		t.Fatalf("Dispatch outcome = %v, want OutcomeYield", outcome)
	}
}

func TestDispatchUnknownScausePanics(t *testing.T) {
	p, _ := newTestProc()
	d := &Dispatcher_t{}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown scause")
		}
	}()
	d.Dispatch(p, 0xdead, 0)
}
