// Package timer implements the indexed min-heap used to evict idle
// connections: a slice ordered by absolute deadline plus an id->index
// map kept in sync on every swap so that a live node can be found and
// re-deadlined in O(log n) without a linear scan.
package timer

import (
	"sync"
	"time"
)

// Callback is invoked once when a node's deadline elapses.
type Callback func()

type node struct {
	id       int
	deadline time.Time
	cb       Callback
}

// Heap is a thread-safe, id-indexed min-heap of timer nodes.
type Heap struct {
	mu    sync.Mutex
	nodes []*node
	index map[int]int // id -> position in nodes
}

// New creates an empty timer heap.
func New() *Heap {
	return &Heap{index: make(map[int]int)}
}

// Add inserts a new node or, if id is already live, updates its
// deadline and callback and restores heap order.
func (h *Heap) Add(id int, timeout time.Duration, cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(timeout)
	if i, ok := h.index[id]; ok {
		h.nodes[i].deadline = deadline
		h.nodes[i].cb = cb
		h.fix(i)
		return
	}
	n := &node{id: id, deadline: deadline, cb: cb}
	h.nodes = append(h.nodes, n)
	h.index[id] = len(h.nodes) - 1
	h.siftUp(len(h.nodes) - 1)
}

// Adjust updates the deadline of a live node and restores heap order.
// It sifts in both directions, keeping the invariant regardless of
// whether the new deadline moved earlier or later.
func (h *Heap) Adjust(id int, timeout time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.index[id]
	if !ok {
		return false
	}
	h.nodes[i].deadline = time.Now().Add(timeout)
	h.fix(i)
	return true
}

// fix restores heap order at index i after its deadline changed,
// trying sift-down first and falling back to sift-up.
func (h *Heap) fix(i int) {
	if !h.siftDown(i) {
		h.siftUp(i)
	}
}

// Cancel removes a live node by id without running its callback.
func (h *Heap) Cancel(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i, ok := h.index[id]; ok {
		h.delete(i)
	}
}

// DoWork invokes id's callback immediately (if still live) and removes
// the node, regardless of whether its deadline has elapsed.
func (h *Heap) DoWork(id int) {
	h.mu.Lock()
	i, ok := h.index[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	n := h.nodes[i]
	h.delete(i)
	h.mu.Unlock()
	n.cb()
}

// Tick runs every node whose deadline has elapsed, oldest first.
func (h *Heap) Tick() {
	for {
		h.mu.Lock()
		if len(h.nodes) == 0 || h.nodes[0].deadline.After(time.Now()) {
			h.mu.Unlock()
			return
		}
		n := h.nodes[0]
		h.delete(0)
		h.mu.Unlock()
		n.cb()
	}
}

// NextTickMS runs Tick and then returns the number of milliseconds
// until the next deadline, or -1 if the heap is empty. The server
// uses this value, capped at its own maximum poll interval, as the
// reactor's wait timeout so the main loop wakes no later than the next
// eviction is due.
func (h *Heap) NextTickMS() int {
	h.Tick()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.nodes) == 0 {
		return -1
	}
	ms := int(time.Until(h.nodes[0].deadline) / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	return ms
}

// Len returns the number of live nodes.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.nodes)
}

// Clear removes every node without running callbacks.
func (h *Heap) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = nil
	h.index = make(map[int]int)
}

// --- unexported heap mechanics, caller must hold h.mu ---

func (h *Heap) less(i, j int) bool { return h.nodes[i].deadline.Before(h.nodes[j].deadline) }

func (h *Heap) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.index[h.nodes[i].id] = i
	h.index[h.nodes[j].id] = j
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

// siftDown sifts node i toward the leaves. Returns true if it moved.
func (h *Heap) siftDown(i int) bool {
	start := i
	n := len(h.nodes)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && h.less(right, left) {
			smallest = right
		}
		if !h.less(smallest, i) {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
	return i > start
}

// delete removes the node at index i, keeping the heap and index map
// consistent: swap with the tail, shrink, then sift the displaced node
// in whichever direction restores order.
func (h *Heap) delete(i int) {
	n := len(h.nodes) - 1
	removed := h.nodes[i]
	h.swap(i, n)
	delete(h.index, removed.id)
	h.nodes = h.nodes[:n]
	if i < n {
		if !h.siftDown(i) {
			h.siftUp(i)
		}
	}
}
