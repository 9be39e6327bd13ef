package fs

import (
	"sync"

	"rvkernel/defs"
)

// / Log_t batches writes from concurrent filesystem operations into a
// / single commit, so a crash never observes a half-applied operation. The
// / absorption rule (writing the same block twice within one transaction
// / only costs one log slot) and the begin_op/end_op nesting discipline
// / follow original_source/kernel/file.c's callers; the on-disk redo-log
// / representation itself is out of scope here and commits go straight to
// / the backing Disk_i.
type Log_t struct {
	mu          sync.Mutex
	cond        *sync.Cond
	disk        Disk_i
	outstanding int
	committing  bool
	pending     map[int][defs.BSIZE]byte
	commits     int
}

// / NewLog constructs a log writing through to disk.
func NewLog(disk Disk_i) *Log_t {
	l := &Log_t{disk: disk, pending: make(map[int][defs.BSIZE]byte)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// / BeginOp must be called before any write belonging to one logical
// / operation (e.g. one writei chunk). It blocks while a commit is in
// / flight, matching begin_op's "wait until the log isn't committing"
// / loop.
func (l *Log_t) BeginOp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.committing {
		l.cond.Wait()
	}
	l.outstanding++
}

// / Write stages data for block to be written atomically at the next
// / commit. It must be called between BeginOp and EndOp.
func (l *Log_t) Write(block int, data [defs.BSIZE]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[block] = data
}

// / EndOp closes one logical operation. The last outstanding operation
// / commits every block staged since the previous commit.
func (l *Log_t) EndOp() {
	l.mu.Lock()
	l.outstanding--
	doCommit := l.outstanding == 0
	if doCommit {
		l.committing = true
	}
	l.mu.Unlock()

	if doCommit {
		l.commit()
		l.mu.Lock()
		l.committing = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

func (l *Log_t) commit() {
	l.mu.Lock()
	batch := l.pending
	l.pending = make(map[int][defs.BSIZE]byte)
	l.commits++
	l.mu.Unlock()

	for block, data := range batch {
		l.disk.WriteBlock(block, data)
	}
}

// / Commits reports how many transactions have committed so far. Tests
// / use this to confirm a batch of writes collapsed into one transaction
// / rather than one per block/page.
func (l *Log_t) Commits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commits
}
