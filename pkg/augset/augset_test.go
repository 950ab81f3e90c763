package augset

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"augset/pkg/carrier"
)

func TestSingleThreadedRoundTrip(t *testing.T) {
	s := New[string](Config{L: 0, R: 10})

	if got := s.Insert(3, "a"); !got {
		t.Fatalf("Insert(3, a) = false, want true")
	}
	if v, ok := s.Find(3); !ok || v != "a" {
		t.Fatalf("Find(3) = %q, %v; want a, true", v, ok)
	}
	if got := s.Check(); got != 1 {
		t.Fatalf("Check() = %d, want 1", got)
	}
	if got := s.Insert(3, "b"); got {
		t.Fatalf("Insert(3, b) = true, want false (already present)")
	}
	if v, ok := s.Find(3); !ok || v != "a" {
		t.Fatalf("Find(3) after no-op insert = %q, %v; want a, true", v, ok)
	}
	if got := s.Remove(3); !got {
		t.Fatalf("Remove(3) = false, want true")
	}
	if _, ok := s.Find(3); ok {
		t.Fatalf("Find(3) after Remove = present, want absent")
	}
	if got := s.Check(); got != 0 {
		t.Fatalf("Check() after Remove = %d, want 0", got)
	}
}

func TestOutOfRange(t *testing.T) {
	s := New[int](Config{L: 0, R: 100})

	if s.Insert(-1, 1) {
		t.Fatalf("Insert(-1) = true, want false")
	}
	if s.Insert(100, 1) {
		t.Fatalf("Insert(100) = true, want false")
	}
	if _, ok := s.Find(1000); ok {
		t.Fatalf("Find(1000) = present, want absent")
	}
	if got := s.Check(); got != 0 {
		t.Fatalf("Check() = %d, want 0", got)
	}
}

func TestAggregation(t *testing.T) {
	s := New[int](Config{L: 0, R: 100})

	s.Insert(1, 1)
	s.Insert(50, 1)
	s.Insert(99, 1)

	if got := s.Check(); got != 3 {
		t.Fatalf("Check() = %d, want 3", got)
	}
	if !s.Remove(50) {
		t.Fatalf("Remove(50) = false, want true")
	}
	if got := s.Check(); got != 2 {
		t.Fatalf("Check() after Remove(50) = %d, want 2", got)
	}
}

func TestBoundaryInsert(t *testing.T) {
	s := New[int](Config{L: 0, R: 10})

	if !s.Insert(0, 1) {
		t.Fatalf("Insert(L) = false, want true")
	}
	if !s.Insert(9, 1) {
		t.Fatalf("Insert(R-1) = false, want true")
	}
	if got := s.Check(); got != 2 {
		t.Fatalf("Check() = %d, want 2", got)
	}
}

func TestFullFill(t *testing.T) {
	const n = 200
	s := New[struct{}](Config{L: 0, R: n})

	for k := 0; k < n; k++ {
		if !s.Insert(k, struct{}{}) {
			t.Fatalf("Insert(%d) = false, want true", k)
		}
	}
	if got := s.Check(); got != n {
		t.Fatalf("Check() = %d, want %d", got, n)
	}
}

func TestRankPrefixAndSuffix(t *testing.T) {
	s := New[int](Config{L: 0, R: 100})
	for _, k := range []int{1, 10, 20, 50, 99} {
		s.Insert(k, k)
	}

	cases := []struct {
		k      int
		prefix int
		suffix int
	}{
		{0, 0, 5},
		{2, 1, 4},
		{21, 3, 2},
		{100, 5, 0},
	}
	for _, c := range cases {
		if got := s.RankPrefix(c.k); got != c.prefix {
			t.Errorf("RankPrefix(%d) = %d, want %d", c.k, got, c.prefix)
		}
		if got := s.RankSuffix(c.k); got != c.suffix {
			t.Errorf("RankSuffix(%d) = %d, want %d", c.k, got, c.suffix)
		}
	}
}

// TestRankPrefixPlusSuffixStaysInBounds races concurrent inserts and
// removes against RankPrefix/RankSuffix calls at a fixed key: since each
// is a direct descent rather than a Check()-minus-RankPrefix subtraction,
// neither count is ever negative and their sum never exceeds the domain
// size.
func TestRankPrefixPlusSuffixStaysInBounds(t *testing.T) {
	const domain = 64
	const k = 32

	s := New[int](Config{L: 0, R: domain})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			key := i % domain
			if i%2 == 0 {
				s.Insert(key, key)
			} else {
				s.Remove(key)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		prefix := s.RankPrefix(k)
		suffix := s.RankSuffix(k)
		if prefix < 0 || suffix < 0 {
			t.Fatalf("RankPrefix(%d)=%d RankSuffix(%d)=%d, want both non-negative", k, prefix, k, suffix)
		}
		if prefix+suffix > domain {
			t.Fatalf("RankPrefix(%d)+RankSuffix(%d) = %d, want <= domain %d", k, k, prefix+suffix, domain)
		}
	}

	close(stop)
	wg.Wait()
}

// TestReclaimHappensDuringOperationNotOnlyAtRetire inserts and removes the
// same keys repeatedly with no intervening call to Retire, and expects the
// version pool to recycle nodes rather than growing without bound: once
// earlier readers have quiesced, epoch.Retire's own Advance/TryReclaim
// should free them for reuse mid-run.
func TestReclaimHappensDuringOperationNotOnlyAtRetire(t *testing.T) {
	const domain = 8
	const rounds = 2000

	s := New[int](Config{L: 0, R: domain})

	for i := 0; i < rounds; i++ {
		k := i % domain
		s.Insert(k, k)
		s.Remove(k)
	}

	_, _, _, versionTotal := s.PoolStats()
	if versionTotal >= int64(rounds) {
		t.Fatalf("versionPool total allocations = %d after %d rounds with no Retire(); want well under %d, meaning reclaimed nodes were never reused mid-run", versionTotal, rounds, rounds)
	}
}

func TestIdempotence(t *testing.T) {
	s := New[int](Config{L: 0, R: 10})

	if !s.Insert(5, 1) {
		t.Fatalf("first Insert(5) = false, want true")
	}
	if s.Insert(5, 2) {
		t.Fatalf("second Insert(5) = true, want false")
	}
	if !s.Remove(5) {
		t.Fatalf("first Remove(5) = false, want true")
	}
	if s.Remove(5) {
		t.Fatalf("second Remove(5) = true, want false")
	}
}

// TestConcurrentInsertsDisjointKeys mirrors the teacher's concurrent
// reader/writer pattern: N goroutines each own a distinct key, and after
// they join every key must be present and Check() must equal N.
func TestConcurrentInsertsDisjointKeys(t *testing.T) {
	const n = 500
	s := New[int](Config{L: 0, R: n})

	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			if !s.Insert(k, k) {
				t.Errorf("Insert(%d) = false, want true", k)
			}
		}(k)
	}
	wg.Wait()

	if got := s.Check(); got != n {
		t.Fatalf("Check() = %d, want %d", got, n)
	}
	for k := 0; k < n; k++ {
		if v, ok := s.Find(k); !ok || v != k {
			t.Errorf("Find(%d) = %d, %v; want %d, true", k, v, ok, k)
		}
	}
}

// TestConcurrentInsertsSameKey races K goroutines inserting the same
// key: exactly one must report success.
func TestConcurrentInsertsSameKey(t *testing.T) {
	const k = 7
	const racers = 32
	s := New[int](Config{L: 0, R: 10})

	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Insert(k, i) {
				atomic.AddInt32(&successes, 1)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successful inserts = %d, want 1", successes)
	}
	if got := s.Check(); got != 1 {
		t.Fatalf("Check() = %d, want 1", got)
	}
}

// TestStressThenQuiesceAggregateConsistency runs a mixed random workload
// across many goroutines, then checks P1 (internal aggregate consistency)
// and P3 (root size matches the live key count) once quiesced.
func TestStressThenQuiesceAggregateConsistency(t *testing.T) {
	const domain = 256
	const workers = 16
	const opsPerWorker = 2000

	s := New[int](Config{L: 0, R: domain})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerWorker; i++ {
				k := rng.Intn(domain)
				if rng.Intn(2) == 0 {
					s.Insert(k, k)
				} else {
					s.Remove(k)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	live := 0
	for k := 0; k < domain; k++ {
		if _, ok := s.Find(k); ok {
			live++
		}
	}
	if got := s.Check(); got != live {
		t.Fatalf("Check() = %d, want %d (counted live keys)", got, live)
	}

	assertAggregateConsistent(t, s.root)
}

func assertAggregateConsistent[V any](t *testing.T, n *carrier.Node[V]) {
	t.Helper()
	if n.IsLeaf {
		size := n.LoadVersion().Size
		if size != 0 && size != 1 {
			t.Errorf("leaf [%d,%d) size = %d, want 0 or 1", n.L, n.R, size)
		}
		return
	}
	v := n.LoadVersion()
	want := n.Left.LoadVersion().Size + n.Right.LoadVersion().Size
	if v.Size != want {
		t.Errorf("internal [%d,%d) size = %d, want %d (sum of children)", n.L, n.R, v.Size, want)
	}
	assertAggregateConsistent(t, n.Left)
	assertAggregateConsistent(t, n.Right)
}
