package filetable

import (
	"sync"

	"rvkernel/defs"
)

// pipeSize is the ring buffer's capacity, mirroring xv6's PIPESIZE.
const pipeSize = 512

// / Pipe_t is an in-memory byte pipe backing a KindPipe File_t. Grounded
// / on the FD_PIPE branches in original_source/kernel/file.c's
// / fileread/filewrite/fileclose (the piperead/pipewrite/pipeclose call
// / sites); pipe.c itself is not part of this build's source set, so the
// / ring-buffer algorithm below is the conventional blocking-pipe one
// / those call sites presuppose, not a line-for-line port.
type Pipe_t struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buf       [pipeSize]byte
	nread     uint
	nwrite    uint
	readOpen  bool
	writeOpen bool
}

// / NewPipe constructs an open pipe with both ends live.
func NewPipe() *Pipe_t {
	p := &Pipe_t{readOpen: true, writeOpen: true}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// / Write blocks while the ring buffer is full and the read end is still
// / open, and fails with EPIPE the moment the read end has closed,
// / matching pipewrite's "no reader left" error.
func (p *Pipe_t) Write(src []byte) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()

	written := 0
	for written < len(src) {
		if !p.readOpen {
			return written, defs.EPIPE
		}
		if p.nwrite-p.nread == pipeSize {
			p.cond.Broadcast()
			p.cond.Wait()
			continue
		}
		p.buf[p.nwrite%pipeSize] = src[written]
		p.nwrite++
		written++
	}
	p.cond.Broadcast()
	return written, defs.Success
}

// / Read blocks while the buffer is empty and the write end is still
// / open; once the write end has closed it drains whatever remains and
// / then returns 0, matching piperead's EOF-on-writer-gone behavior.
func (p *Pipe_t) Read(dst []byte) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.nread == p.nwrite && p.writeOpen {
		p.cond.Wait()
	}
	n := 0
	for n < len(dst) && p.nread < p.nwrite {
		dst[n] = p.buf[p.nread%pipeSize]
		p.nread++
		n++
	}
	p.cond.Broadcast()
	return n, defs.Success
}

// / CloseEnd marks one end of the pipe closed, matching pipeclose's
// / writable-argument branch, and wakes any peer blocked on the other end.
func (p *Pipe_t) CloseEnd(writable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if writable {
		p.writeOpen = false
	} else {
		p.readOpen = false
	}
	p.cond.Broadcast()
}
