// Command kernel boots the simulated machine: parse the flattened device
// tree the bootloader left behind, build the platform descriptor,
// construct the frame allocator, file table, filesystem log, a fresh init
// process, and a trap dispatcher wired to the device fakes, then print
// what was discovered. No scheduler loop runs and no trap is dispatched:
// the PLIC/UART/virtio drivers, the scheduler, and the trampoline are out
// of scope.
package main

import (
	"fmt"
	"os"

	"rvkernel/device"
	"rvkernel/dtb"
	"rvkernel/filetable"
	"rvkernel/fs"
	"rvkernel/mem"
	"rvkernel/proc"
	"rvkernel/trap"
)

func boot(blob []byte) (*proc.Proc_t, *trap.Dispatcher_t, *dtb.Platform_t) {
	plat := dtb.Parse(blob)

	frames := mem.NewFrameStore()
	files := filetable.New()
	disk := fs.NewMemDisk(4096)
	_ = fs.NewLog(disk) // the root filesystem's log; init's own files get their own inodes/logs

	init := proc.New(frames, files)

	d := &trap.Dispatcher_t{
		Plic:      &device.FakePlic_t{},
		Uart:      &device.FakeUart_t{},
		Virtio:    &device.FakeVirtio_t{},
		UartIRQ:   plat.UartIRQ,
		VirtioIRQ: plat.VirtioIRQ,
	}
	return init, d, plat
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: kernel <dtb-path>")
		os.Exit(1)
	}
	blob, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: reading dtb: %v\n", err)
		os.Exit(1)
	}

	init, _, plat := boot(blob)
	fmt.Printf("kernel: booted pid %d, %d cpu(s) discovered, uart@%#x virtio@%#x\n",
		init.Pid, len(plat.Cpus), plat.UartBase, plat.VirtioBase)
}
