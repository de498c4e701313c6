package cotask

// PoolConfig tunes per-task resource sizing. Defaults mirror the reference
// implementation's stack/scratch sizing intent, scaled to what a Go task
// body's own local working memory (not its goroutine stack, which Go grows
// on its own) plausibly needs.
type PoolConfig struct {
	// ScratchArenaSize is the size in bytes of each task's private bump
	// allocator, used by TaskAlloc. HostEvents and HostEntity do not
	// allocate from it.
	ScratchArenaSize int
}

// DefaultPoolConfig matches the reference's default constrained-stack size
// class (64 KiB), reimagined as a scratch arena rather than a full stack.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{ScratchArenaSize: 64 * 1024}
}

// Pool recycles Task objects. Unlike the reference implementation, which
// pools fixed-size native stacks because allocating one is expensive, this
// pool exists to reuse each task's scratch-arena backing buffer and channel
// pair — Go goroutine stacks already grow/shrink on their own and need no
// pooling of their own.
type Pool struct {
	cfg       PoolConfig
	free      []*Task
	allocated int
	inUse     int

	peakScratchHighWater int
}

// NewPool constructs an empty pool with the given configuration.
func NewPool(cfg PoolConfig) *Pool {
	return &Pool{cfg: cfg}
}

func (p *Pool) acquire(sched *CoSched, entry func(*Task), label string) *Task {
	var t *Task
	if n := len(p.free); n > 0 {
		t = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		t.resetForReuse()
	} else {
		t = newTask(p.cfg)
		p.allocated++
	}
	p.inUse++
	globalTaskUID++
	if globalTaskUID == 0 {
		panic("cotask: task id counter wrapped to zero")
	}
	t.uniqueID = globalTaskUID
	t.sched = sched
	t.entry = entry
	t.DebugLabel = label
	t.finished.Init()
	return t
}

func (p *Pool) release(t *Task) {
	if t.status != StatusDead {
		panic("cotask: pool.release called on a task that is not dead")
	}
	p.inUse--
	if t.scratch.peakUsed > p.peakScratchHighWater {
		p.peakScratchHighWater = t.scratch.peakUsed
	}
	t.uniqueID = 0
	p.free = append(p.free, t)
}

// Allocated is the total number of Task objects ever constructed (live +
// pooled).
func (p *Pool) Allocated() int { return p.allocated }

// InUse is the number of Task objects currently assigned to a live task.
func (p *Pool) InUse() int { return p.inUse }

// PeakScratchBytes is the high-water mark, across every task ever released
// back to the pool, of scratch-arena bytes used — the closest Go-native
// analogue of the reference's canary-based peak native-stack usage stat.
func (p *Pool) PeakScratchBytes() int { return p.peakScratchHighWater }

// Shutdown drops every pooled task, allowing them to be garbage collected.
func (p *Pool) Shutdown() {
	p.free = nil
	p.allocated = 0
	p.inUse = 0
}

var globalTaskUID uint32

const scratchAlign = 8

func alignUp(n int) int {
	return (n + scratchAlign - 1) &^ (scratchAlign - 1)
}

// scratchArena is a per-task bump allocator backed by a fixed-size reusable
// buffer, with heap fallback once the buffer is exhausted. It stands in for
// the reference implementation's on-stack scratch allocator (task_alloc),
// since Go task bodies have no equivalent notion of "the rest of my own
// native stack frame" to carve space from.
type scratchArena struct {
	buf      []byte
	offset   int
	overflow [][]byte
	peakUsed int
	onSpill  func(requested, available int)
}

func (a *scratchArena) alloc(size int) []byte {
	aligned := alignUp(size)
	if a.offset+aligned <= len(a.buf) {
		p := a.buf[a.offset : a.offset+size : a.offset+size]
		a.offset += aligned
		if a.offset > a.peakUsed {
			a.peakUsed = a.offset
		}
		return p
	}
	if a.onSpill != nil {
		a.onSpill(size, len(a.buf)-a.offset)
	}
	chunk := make([]byte, size)
	a.overflow = append(a.overflow, chunk)
	return chunk
}

func (a *scratchArena) reset() {
	a.offset = 0
	a.overflow = nil
	a.peakUsed = 0
}

func (a *scratchArena) free() {
	a.overflow = nil
}

// TaskAlloc allocates size bytes of scratch memory scoped to the task's
// lifetime, served from its private arena where possible and falling back
// to a heap allocation (logged once per spill via CoSched.Logger) when the
// arena is exhausted.
func (t *Task) TaskAlloc(size int) []byte {
	if t.scratch.onSpill == nil {
		t.scratch.onSpill = func(requested, available int) {
			t.sched.logf("task %q: scratch arena exhausted (%d bytes requested, %d available), spilling to heap", t.DebugLabel, requested, available)
		}
	}
	return t.scratch.alloc(size)
}
