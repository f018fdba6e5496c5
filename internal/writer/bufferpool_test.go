package writer

import "testing"

func TestBytePool_GetReturnsRequestedLength(t *testing.T) {
	p := NewBytePool()
	buf := p.Get(10)
	if len(buf) != 10 {
		t.Fatalf("expected length 10, got %d", len(buf))
	}
}

func TestBytePool_ReuseAfterPut(t *testing.T) {
	p := NewBytePool()
	buf := p.Get(1024)
	p.Put(buf)

	reused := p.Get(1024)
	if cap(reused) != 1024 {
		t.Fatalf("expected reused buffer capacity 1024, got %d", cap(reused))
	}
}

func TestBytePool_OversizedFallsBackToDirectAllocation(t *testing.T) {
	p := NewBytePool()
	buf := p.Get(100 * 1024 * 1024)
	if len(buf) != 100*1024*1024 {
		t.Fatalf("expected direct allocation of requested size, got %d", len(buf))
	}
}
