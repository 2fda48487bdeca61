package parallel

import (
	"sync/atomic"
	"testing"
)

func TestExecuteAllRunsEverything(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var count atomic.Int64
	jobs := make([]func(), 100)
	for i := range jobs {
		jobs[i] = func() { count.Add(1) }
	}
	p.ExecuteAll(jobs)
	if got := count.Load(); got != 100 {
		t.Errorf("ran %d jobs, want 100", got)
	}
}

func TestForEachCoversAllIndices(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	seen := make([]atomic.Bool, 50)
	p.ForEach(len(seen), func(i int) { seen[i].Store(true) })
	for i := range seen {
		if !seen[i].Load() {
			t.Errorf("index %d never ran", i)
		}
	}
}

func TestClosedPoolRunsInline(t *testing.T) {
	p := NewPool(2)
	p.Close()

	var count atomic.Int64
	p.ExecuteAll([]func(){
		func() { count.Add(1) },
		func() { count.Add(1) },
	})
	if count.Load() != 2 {
		t.Error("closed pool dropped work")
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := NewPool(1)
	p.Close()
	p.Close()
}

func TestDefaultWorkerCount(t *testing.T) {
	p := NewPool(0)
	defer p.Close()
	if p.Workers() < 1 {
		t.Errorf("workers = %d", p.Workers())
	}
}
