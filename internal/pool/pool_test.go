package pool_test

import (
	"sync"
	"testing"

	"github.com/fishy/docsync/internal/pool"
)

func TestPool(t *testing.T) {
	created := 0
	p := pool.New(2, func() int {
		created++
		return -created
	})

	if v := p.Get(); v != -1 {
		t.Errorf("Get on empty pool expected -1, got %d", v)
	}
	if size := p.Size(); size != 0 {
		t.Errorf("Pool size expected 0, got %d", size)
	}

	if !p.Put(1) {
		t.Error("Put returned false on non-full pool")
	}
	if !p.Put(2) {
		t.Error("Put returned false on non-full pool")
	}
	if p.Put(3) {
		t.Error("Put returned true on full pool")
	}
	if size := p.Size(); size != 2 {
		t.Errorf("Pool size expected 2, got %d", size)
	}

	for _, expect := range []int{1, 2, -2} {
		if v := p.Get(); v != expect {
			t.Errorf("Get expected %d, got %d", expect, v)
		}
	}
	if size := p.Size(); size != 0 {
		t.Errorf("Pool size expected 0, got %d", size)
	}

	// Reusable after being drained.
	p.Put(4)
	if v := p.Get(); v != 4 {
		t.Errorf("Get expected 4, got %d", v)
	}
}

func TestUnlimited(t *testing.T) {
	p := pool.New(0, func() string { return "" })
	for i := 0; i < 100; i++ {
		if !p.Put("x") {
			t.Fatalf("Put #%d returned false on unlimited pool", i)
		}
	}
	if size := p.Size(); size != 100 {
		t.Errorf("Pool size expected 100, got %d", size)
	}
}

func TestConcurrent(t *testing.T) {
	p := pool.New(4, func() []byte { return make([]byte, 0, 16) })
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Put(p.Get()[:0])
			}
		}()
	}
	wg.Wait()
	if size := p.Size(); size > 4 {
		t.Errorf("Pool size expected <= 4, got %d", size)
	}
}
