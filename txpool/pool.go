// Package txpool implements the mempool: a bounded map from a
// transaction's hash to the transaction itself, with secondary indices
// on (creator, nonce) and (fee_desc, arrival_time_asc). Drain sorts a
// snapshot of the whole pool into block-assembly order, and eviction
// skips a creator's lowest outstanding nonce gap.
package txpool

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/undchain/modulr/chain"
)

// MaxSize bounds the number of pending transactions held at once.
const MaxSize = 10_000

// MinFee is the admission floor; transactions paying less are rejected
// outright rather than admitted and later evicted.
const MinFee = 0

var (
	ErrPoolFull       = errors.New("txpool: pool is full")
	ErrAlreadyPresent = errors.New("txpool: transaction already pooled")
	ErrStaleNonce     = errors.New("txpool: nonce is not the creator's expected next nonce")
	ErrFeeTooLow      = errors.New("txpool: fee below minimum")
)

// NonceLookup resolves a creator's next expected nonce, backed by
// whatever account/nonce tracking state the node keeps.
type NonceLookup func(creator string) uint64

type entry struct {
	tx          *chain.Transaction
	id          string
	arrivalTime time.Time
	heapIndex   int
}

// Pool is a thread-safe pending-transaction pool.
type Pool struct {
	mu sync.RWMutex

	byID      map[string]*entry
	byCreator map[string]map[uint64]*entry // creator -> nonce -> entry
	order     *feeOrderHeap                // ordered by (fee_desc, arrival_time_asc)

	nextNonce NonceLookup
}

// NewPool creates an empty pool. nextNonce resolves admission's nonce
// check; pass nil to skip nonce validation (tests, or pools seeded from
// already-validated transactions).
func NewPool(nextNonce NonceLookup) *Pool {
	return &Pool{
		byID:      make(map[string]*entry),
		byCreator: make(map[string]map[uint64]*entry),
		order:     &feeOrderHeap{},
		nextNonce: nextNonce,
	}
}

// Add validates and inserts tx. Admission requires a valid signature
// (checked by the caller before Add — Pool trusts tx.Creator/tx.Sig are
// already verified so it doesn't redo expensive crypto under the lock),
// a nonce matching the creator's expected next nonce, and a fee at or
// above MinFee. When the pool is full, Add evicts the least-recently
// arrived transaction, skipping any transaction that is the lowest
// outstanding (creator, nonce) gap for its creator.
func (p *Pool) Add(tx *chain.Transaction) error {
	if tx.Fee < MinFee {
		return ErrFeeTooLow
	}
	id := tx.ID()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[id]; exists {
		return ErrAlreadyPresent
	}
	if p.nextNonce != nil && tx.Nonce != p.nextNonce(tx.Creator) {
		return ErrStaleNonce
	}

	if len(p.byID) >= MaxSize {
		if !p.evictOneLocked() {
			return ErrPoolFull
		}
	}

	e := &entry{tx: tx, id: id, arrivalTime: time.Now()}
	p.byID[id] = e
	if p.byCreator[tx.Creator] == nil {
		p.byCreator[tx.Creator] = make(map[uint64]*entry)
	}
	p.byCreator[tx.Creator][tx.Nonce] = e
	heap.Push(p.order, e)
	return nil
}

// evictOneLocked removes the oldest-arrived entry that is not its
// creator's lowest outstanding nonce gap. Returns false if every pooled
// transaction is such a gap (nothing safe to evict).
func (p *Pool) evictOneLocked() bool {
	var oldest *entry
	for _, e := range p.byID {
		if p.isLowestGapLocked(e) {
			continue
		}
		if oldest == nil || e.arrivalTime.Before(oldest.arrivalTime) {
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	p.removeLocked(oldest)
	return true
}

// isLowestGapLocked reports whether e is the lowest pooled nonce for its
// creator, i.e. evicting it would strand every higher nonce from that
// creator behind a hole admission will never fill by itself.
func (p *Pool) isLowestGapLocked(e *entry) bool {
	byNonce := p.byCreator[e.tx.Creator]
	for nonce := range byNonce {
		if nonce < e.tx.Nonce {
			return false
		}
	}
	return true
}

func (p *Pool) removeLocked(e *entry) {
	delete(p.byID, e.id)
	if m := p.byCreator[e.tx.Creator]; m != nil {
		delete(m, e.tx.Nonce)
		if len(m) == 0 {
			delete(p.byCreator, e.tx.Creator)
		}
	}
	if e.heapIndex >= 0 && e.heapIndex < p.order.Len() {
		heap.Remove(p.order, e.heapIndex)
	}
}

// Get returns a pooled transaction by ID.
func (p *Pool) Get(id string) (*chain.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Drain returns up to n pending transactions ordered by
// (fee_desc, nonce_asc, creator), the order the leader drains under for
// block assembly. It does not remove them; call Remove after the block
// commits.
func (p *Pool) Drain(n int) []*chain.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]*entry, len(p.order.items))
	copy(all, p.order.items)
	sortByFeeNonceCreator(all)

	if n > len(all) {
		n = len(all)
	}
	out := make([]*chain.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].tx
	}
	return out
}

// Remove deletes transactions by ID, called after a block that included
// them commits.
func (p *Pool) Remove(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if e, ok := p.byID[id]; ok {
			p.removeLocked(e)
		}
	}
}

// Size returns the number of pooled transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

func sortByFeeNonceCreator(entries []*entry) {
	// insertion sort over every entry Drain passes in, i.e. the whole
	// pool, not just the n transactions Drain returns.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && lessByFeeNonceCreator(entries[j], entries[j-1]) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

func lessByFeeNonceCreator(a, b *entry) bool {
	if a.tx.Fee != b.tx.Fee {
		return a.tx.Fee > b.tx.Fee // fee_desc
	}
	if a.tx.Nonce != b.tx.Nonce {
		return a.tx.Nonce < b.tx.Nonce // nonce_asc
	}
	return a.tx.Creator < b.tx.Creator
}

// feeOrderHeap keeps entries ordered by (fee_desc, arrival_time_asc).
// Eviction does not use its order (it scans byID for the oldest arrival),
// and Drain re-sorts its own snapshot by the block-assembly order instead
// of relying on heap order directly.
type feeOrderHeap struct {
	items []*entry
}

func (h *feeOrderHeap) Len() int { return len(h.items) }
func (h *feeOrderHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.tx.Fee != b.tx.Fee {
		return a.tx.Fee > b.tx.Fee
	}
	return a.arrivalTime.Before(b.arrivalTime)
}
func (h *feeOrderHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
}
func (h *feeOrderHeap) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(h.items)
	h.items = append(h.items, e)
}
func (h *feeOrderHeap) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	e.heapIndex = -1
	return e
}
