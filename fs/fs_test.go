package fs

import (
	"bytes"
	"testing"

	"rvkernel/defs"
)

func TestWriteiReadiRoundTrip(t *testing.T) {
	disk := NewMemDisk(16)
	log := NewLog(disk)
	ip := NewInode(log)

	msg := []byte("hello, kernel")
	n, err := ip.Writei(msg, 0)
	if err != defs.Success || n != len(msg) {
		t.Fatalf("Writei = (%d, %v), want (%d, Success)", n, err, len(msg))
	}
	if ip.Size() != len(msg) {
		t.Fatalf("Size = %d, want %d", ip.Size(), len(msg))
	}

	got := make([]byte, len(msg))
	if n := ip.Readi(got, 0); n != len(msg) || !bytes.Equal(got, msg) {
		t.Fatalf("Readi = (%d, %q), want (%d, %q)", n, got, len(msg), msg)
	}
}

func TestWriteiExtendsPastEnd(t *testing.T) {
	disk := NewMemDisk(16)
	log := NewLog(disk)
	ip := NewInode(log)

	ip.Writei([]byte("abc"), 0)
	ip.Writei([]byte("xyz"), 10)
	if ip.Size() != 13 {
		t.Fatalf("Size = %d, want 13", ip.Size())
	}
	buf := make([]byte, 13)
	ip.Readi(buf, 0)
	if !bytes.Equal(buf[0:3], []byte("abc")) || !bytes.Equal(buf[10:13], []byte("xyz")) {
		t.Fatalf("unexpected hole contents: %v", buf)
	}
}

func TestReadiPastEOFIsShort(t *testing.T) {
	disk := NewMemDisk(16)
	log := NewLog(disk)
	ip := NewInode(log)
	ip.Writei([]byte("ab"), 0)

	buf := make([]byte, 10)
	if n := ip.Readi(buf, 5); n != 0 {
		t.Fatalf("Readi past EOF = %d, want 0", n)
	}
}

func TestWriteiOverChunkRejected(t *testing.T) {
	disk := NewMemDisk(16)
	log := NewLog(disk)
	ip := NewInode(log)

	big := make([]byte, defs.WriteChunk+1)
	if _, err := ip.Writei(big, 0); err != defs.EINVAL {
		t.Fatalf("Writei over WriteChunk = %v, want EINVAL", err)
	}
}

func TestLogCommitsToDisk(t *testing.T) {
	disk := NewMemDisk(4)
	log := NewLog(disk)
	ip := NewInode(log)

	payload := make([]byte, defs.BSIZE)
	for i := range payload {
		payload[i] = 0x42
	}
	ip.Writei(payload, 0)

	blk := disk.ReadBlock(0)
	if blk[0] != 0x42 || blk[defs.BSIZE-1] != 0x42 {
		t.Fatal("committed block does not match written data")
	}
}

func TestConcurrentOpsSerializeAtCommit(t *testing.T) {
	disk := NewMemDisk(4)
	log := NewLog(disk)
	ip := NewInode(log)

	done := make(chan struct{})
	go func() {
		ip.Writei([]byte("first"), 0)
		done <- struct{}{}
	}()
	ip.Writei([]byte("second"), 100)
	<-done

	if ip.Size() < 105 {
		t.Fatalf("Size = %d, want at least 105", ip.Size())
	}
}
