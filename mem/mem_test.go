package mem

import "testing"

func TestAllocRefupRefdown(t *testing.T) {
	fs := NewFrameStore()
	pa, ok := fs.Alloc()
	if !ok {
		t.Fatal("Alloc failed")
	}
	if got := fs.Refcnt(pa); got != 1 {
		t.Fatalf("Refcnt after Alloc = %d, want 1", got)
	}

	fs.Refup(pa)
	if got := fs.Refcnt(pa); got != 2 {
		t.Fatalf("Refcnt after Refup = %d, want 2", got)
	}

	if freed := fs.Refdown(pa); freed {
		t.Fatal("Refdown freed a frame still at refcount 1")
	}
	if got := fs.Refcnt(pa); got != 1 {
		t.Fatalf("Refcnt after first Refdown = %d, want 1", got)
	}

	if freed := fs.Refdown(pa); !freed {
		t.Fatal("Refdown did not report freed at refcount 0")
	}
	if fs.Live() != 0 {
		t.Fatalf("Live() = %d after last Refdown, want 0", fs.Live())
	}
}

func TestRefdownUnknownFramePanics(t *testing.T) {
	fs := NewFrameStore()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic touching a freed frame")
		}
	}()
	fs.Refdown(Pa_t(0xdead))
}

func TestDataIsPerFrame(t *testing.T) {
	fs := NewFrameStore()
	a, _ := fs.Alloc()
	b, _ := fs.Alloc()
	if a == b {
		t.Fatal("Alloc returned the same address twice")
	}
	fs.Bytes(a)[0] = 0xff
	if fs.Bytes(b)[0] != 0 {
		t.Fatal("writing frame a mutated frame b")
	}
}

func TestLiveCounts(t *testing.T) {
	fs := NewFrameStore()
	n := 5
	pas := make([]Pa_t, n)
	for i := range pas {
		pas[i], _ = fs.Alloc()
	}
	if fs.Live() != n {
		t.Fatalf("Live() = %d, want %d", fs.Live(), n)
	}
	for _, pa := range pas {
		fs.Refdown(pa)
	}
	if fs.Live() != 0 {
		t.Fatalf("Live() = %d after freeing all, want 0", fs.Live())
	}
}
