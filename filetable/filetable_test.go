package filetable

import (
	"testing"

	"rvkernel/defs"
	"rvkernel/device"
	"rvkernel/fs"
)

func newTestFile(t *Table_t) *File_t {
	f, ok := t.Alloc()
	if !ok {
		panic("table full")
	}
	disk := fs.NewMemDisk(16)
	log := fs.NewLog(disk)
	f.Kind = KindInode
	f.Readable = true
	f.Writable = true
	f.Ip = fs.NewInode(log)
	return f
}

func TestAllocDupCloseRefcount(t *testing.T) {
	tab := New()
	f := newTestFile(tab)
	if f.Ref != 1 {
		t.Fatalf("Ref after Alloc = %d, want 1", f.Ref)
	}

	tab.Dup(f)
	if f.Ref != 2 {
		t.Fatalf("Ref after Dup = %d, want 2", f.Ref)
	}

	tab.Close(f)
	if f.Ref != 1 {
		t.Fatalf("Ref after first Close = %d, want 1", f.Ref)
	}

	tab.Close(f)
	if f.Ref != 0 {
		t.Fatalf("Ref after final Close = %d, want 0", f.Ref)
	}
}

func TestCloseAlreadyClosedPanics(t *testing.T) {
	tab := New()
	f := newTestFile(tab)
	tab.Close(f)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Close")
		}
	}()
	tab.Close(f)
}

func TestDupClosedPanics(t *testing.T) {
	tab := New()
	f := newTestFile(tab)
	tab.Close(f)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Dup of closed file")
		}
	}()
	tab.Dup(f)
}

func TestReadWriteAdvancesOffset(t *testing.T) {
	tab := New()
	f := newTestFile(tab)

	n, err := f.Write([]byte("abcdef"))
	if err != defs.Success || n != 6 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}
	if f.Off != 6 {
		t.Fatalf("Off after Write = %d, want 6", f.Off)
	}

	f.Seek(0, 0)
	buf := make([]byte, 6)
	n, err = f.Read(buf)
	if err != defs.Success || n != 6 || string(buf) != "abcdef" {
		t.Fatalf("Read = (%d, %v, %q)", n, err, buf)
	}
}

func TestWriteNotWritableRejected(t *testing.T) {
	tab := New()
	f := newTestFile(tab)
	f.Writable = false
	if _, err := f.Write([]byte("x")); err != defs.EINVAL {
		t.Fatalf("Write on non-writable file = %v, want EINVAL", err)
	}
}

func TestAllocExhaustsTable(t *testing.T) {
	tab := New()
	for i := 0; i < defs.NFILE; i++ {
		if _, ok := tab.Alloc(); !ok {
			t.Fatalf("Alloc failed early at i=%d", i)
		}
	}
	if _, ok := tab.Alloc(); ok {
		t.Fatal("expected Alloc to fail once table is full")
	}
}

func newPipeFiles(t *Table_t) (read, write *File_t) {
	p := NewPipe()

	read, _ = t.Alloc()
	read.Kind = KindPipe
	read.Readable = true
	read.Pipe = p

	write, _ = t.Alloc()
	write.Kind = KindPipe
	write.Writable = true
	write.Pipe = p
	return read, write
}

func TestPipeReadWriteRoundTrips(t *testing.T) {
	tab := New()
	r, w := newPipeFiles(tab)

	n, err := w.Write([]byte("hello"))
	if err != defs.Success || n != 5 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}

	buf := make([]byte, 5)
	n, err = r.Read(buf)
	if err != defs.Success || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = (%d, %v, %q)", n, err, buf)
	}
}

func TestPipeWriteAfterReaderClosedReturnsEPIPE(t *testing.T) {
	tab := New()
	r, w := newPipeFiles(tab)
	tab.Close(r)

	if _, err := w.Write([]byte("x")); err != defs.EPIPE {
		t.Fatalf("Write after reader closed = %v, want EPIPE", err)
	}
}

func TestPipeReadAfterWriterClosedDrainsThenEOF(t *testing.T) {
	tab := New()
	r, w := newPipeFiles(tab)

	w.Write([]byte("ab"))
	tab.Close(w)

	buf := make([]byte, 2)
	n, err := r.Read(buf)
	if err != defs.Success || n != 2 || string(buf) != "ab" {
		t.Fatalf("Read after writer closed = (%d, %v, %q), want (2, Success, \"ab\")", n, err, buf)
	}

	n, err = r.Read(buf)
	if err != defs.Success || n != 0 {
		t.Fatalf("Read at EOF = (%d, %v), want (0, Success)", n, err)
	}
}

func TestDeviceReadWriteDispatches(t *testing.T) {
	tab := New()
	f, _ := tab.Alloc()
	f.Kind = KindDevice
	f.Readable = true
	f.Writable = true
	f.Major = defs.D_CONSOLE
	f.Dev = &device.ConsoleDevice_t{}

	n, err := f.Write([]byte("boot"))
	if err != defs.Success || n != 4 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}
	con := f.Dev.(*device.ConsoleDevice_t)
	if string(con.Out) != "boot" {
		t.Fatalf("console.Out = %q, want \"boot\"", con.Out)
	}
}

func TestStatReportsInodeSize(t *testing.T) {
	tab := New()
	f := newTestFile(tab)
	f.Write([]byte("abcdef"))

	st, err := f.Stat()
	if err != defs.Success || st.Size != 6 {
		t.Fatalf("Stat = (%+v, %v), want Size=6", st, err)
	}
}

func TestStatOnPipeRejected(t *testing.T) {
	tab := New()
	r, _ := newPipeFiles(tab)
	if _, err := r.Stat(); err != defs.EINVAL {
		t.Fatalf("Stat on pipe = %v, want EINVAL", err)
	}
}

func TestInsertAtDoesNotAdvanceOffset(t *testing.T) {
	tab := New()
	f := newTestFile(tab)
	f.Write([]byte("xxxxxx"))
	f.Seek(0, 0)

	n, err := f.InsertAt([]byte("YY"), 2)
	if err != defs.Success || n != 2 {
		t.Fatalf("InsertAt = (%d, %v)", n, err)
	}
	if f.Off != 0 {
		t.Fatalf("Off after InsertAt = %d, want unchanged 0", f.Off)
	}

	buf := make([]byte, 6)
	f.Read(buf)
	if string(buf) != "xxYYxx" {
		t.Fatalf("contents after InsertAt = %q, want \"xxYYxx\"", buf)
	}
}
