package job_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/xraph/runner/job"
)

func TestRegistry_CreateStartsAtOne(t *testing.T) {
	r := job.NewRegistry()

	if got := r.Create(); got != 1 {
		t.Fatalf("first id = %d, want 1", got)
	}
	if got := r.Create(); got != 2 {
		t.Fatalf("second id = %d, want 2", got)
	}
}

func TestRegistry_ConcurrentCreateIsUnique(t *testing.T) {
	r := job.NewRegistry()

	const n = 1000
	ids := make([]job.ID, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Create()
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if id != job.ID(i+1) {
			t.Fatalf("ids[%d] = %d, want %d", i, id, i+1)
		}
	}
	if r.Len() != n {
		t.Errorf("Len = %d, want %d", r.Len(), n)
	}
}

func TestRegistry_CancelAndRemove(t *testing.T) {
	r := job.NewRegistry()
	a := r.Create()
	b := r.Create()

	if !r.Cancel(a) {
		t.Error("Cancel should report a live job")
	}
	if r.Cancel(a) {
		t.Error("second Cancel should report false")
	}
	if r.IsLive(a) {
		t.Error("cancelled job should not be live")
	}
	if !r.IsLive(b) {
		t.Error("other job should still be live")
	}

	r.Remove(b)
	r.Remove(b)
	if r.IsLive(b) {
		t.Error("removed job should not be live")
	}
	if r.IsLive(99) {
		t.Error("unknown id should not be live")
	}
}

func TestRegistry_CancelAllKeepsCounter(t *testing.T) {
	r := job.NewRegistry()
	r.Create()
	r.Create()

	r.CancelAll()
	if r.Len() != 0 {
		t.Fatalf("Len after CancelAll = %d, want 0", r.Len())
	}
	if got := r.Create(); got != 3 {
		t.Errorf("id after CancelAll = %d, want 3", got)
	}
}

func TestRegistry_ResetRewindsCounter(t *testing.T) {
	r := job.NewRegistry()
	r.Create()
	r.Create()

	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", r.Len())
	}
	if got := r.Create(); got != 1 {
		t.Errorf("id after Reset = %d, want 1", got)
	}
}

func TestRegistry_Live(t *testing.T) {
	r := job.NewRegistry()
	for range 3 {
		r.Create()
	}
	r.Cancel(2)

	got := r.Live()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Live = %v, want [1 3]", got)
	}
}

func TestRegistry_LeaseDoesNotOutliveReset(t *testing.T) {
	r := job.NewRegistry()
	old := r.Acquire()

	r.Reset()
	cur := r.Acquire()
	if cur.ID != old.ID {
		t.Fatalf("reused id = %d, want %d", cur.ID, old.ID)
	}
	if r.Held(old) {
		t.Error("lease from before Reset still held")
	}
	if !r.Held(cur) {
		t.Error("fresh lease not held")
	}

	r.Release(old)
	if !r.IsLive(cur.ID) {
		t.Error("releasing a stale lease removed the reissued job")
	}
	r.Release(cur)
	if r.IsLive(cur.ID) {
		t.Error("job still live after Release")
	}
}
