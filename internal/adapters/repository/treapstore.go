package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/types"
	"github.com/okian/posfit/pkg/metrics"
)

// Treap-based, in-memory ResultStore.
//
// One treap per outfield position. Ordering: combo DESC, then player ID ASC.
// "less" means ranks earlier, so in-order traversal yields the ranking from
// best to worst.

// comboScale turns one-decimal combos into exact integers.
const comboScale = 1_000_000

type comboFP int64

func toFixedPoint(x float64) comboFP {
	if math.IsNaN(x) {
		return 0
	}
	return comboFP(math.Round(x * comboScale))
}

func toFloat(x comboFP) float64 {
	return float64(x) / comboScale
}

// treap node
type node struct {
	id    string
	combo comboFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aCombo, aID) should appear before (bCombo, bID).
func less(aCombo comboFP, aID string, bCombo comboFP, bID string) bool {
	if aCombo != bCombo {
		return aCombo > bCombo
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// idPriority derives a heap priority from the player ID. Combos cluster
// around a few values, so a combo-derived priority would skew the tree.
func idPriority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, combo comboFP) *node {
	if n == nil {
		return &node{id: id, combo: combo, prio: idPriority(id), size: 1}
	}
	if less(combo, id, n.combo, n.id) {
		n.left = insert(n.left, id, combo)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, combo)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, combo comboFP) *node {
	if n == nil {
		return nil
	}
	if combo == n.combo && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, combo)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, combo)
		}
	} else if less(combo, id, n.combo, n.id) {
		n.left = deleteNode(n.left, id, combo)
	} else {
		n.right = deleteNode(n.right, id, combo)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes hold a combo strictly greater than c.
func countAbove(n *node, c comboFP) int {
	count := 0
	for n != nil {
		if n.combo > c {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// MemStore keeps results in memory with one ranking treap per position.
type MemStore struct {
	mu    sync.RWMutex
	roots map[position.Position]*node
	byID  map[string]model.Result

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemStore constructs an in-memory store and starts its metrics updater.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		roots:                 make(map[position.Position]*node, position.Count),
		byID:                  make(map[string]model.Result),
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Upsert replaces stored results in O(P log n) expected time per result.
func (s *MemStore) Upsert(_ context.Context, results ...model.Result) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	for _, r := range results {
		if r.PlayerID == "" {
			metrics.RecordStoreError("upsert")
			return fmt.Errorf("%w: empty player id", ErrInvalidResult)
		}
	}

	s.mu.Lock()
	for _, r := range results {
		if old, ok := s.byID[r.PlayerID]; ok {
			s.remove(old)
		}
		c := cloneResult(r)
		s.byID[r.PlayerID] = c
		for _, pos := range position.Outfield() {
			if combo, ok := c.Combo[pos]; ok {
				s.roots[pos] = insert(s.roots[pos], c.PlayerID, toFixedPoint(combo))
			}
		}
	}
	count := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateStoreRecords(count)
	return nil
}

// remove drops r from every treap; the caller holds the write lock.
func (s *MemStore) remove(r model.Result) {
	for pos, combo := range r.Combo {
		s.roots[pos] = deleteNode(s.roots[pos], r.PlayerID, toFixedPoint(combo))
	}
}

// Get returns a copy of the stored result.
func (s *MemStore) Get(_ context.Context, playerID string) (model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[playerID]
	if !ok {
		return model.Result{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}
	return cloneResult(r), nil
}

// TopN returns the first n entries of the ranking at pos.
func (s *MemStore) TopN(_ context.Context, pos position.Position, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordStoreError("top_n")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	if !pos.IsOutfield() {
		metrics.RecordStoreError("top_n")
		return nil, fmt.Errorf("%w: %q", position.ErrUnknownPosition, pos)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.roots[pos], n, &nodes)

	out := make([]types.Entry, len(nodes))
	for i, nd := range nodes {
		out[i] = types.Entry{
			PlayerID: nd.id,
			Position: pos,
			Combo:    toFloat(nd.combo),
			Fit:      s.byID[nd.id].Fit[pos],
		}
	}
	assignRanks(out)
	return out, nil
}

// Rank returns the competition rank of playerID at pos in O(log n).
func (s *MemStore) Rank(_ context.Context, pos position.Position, playerID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if !pos.IsOutfield() {
		return types.Entry{}, fmt.Errorf("%w: %q", position.ErrUnknownPosition, pos)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[playerID]
	if !ok {
		return types.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}
	combo, ok := r.Combo[pos]
	if !ok {
		return types.Entry{}, fmt.Errorf("%w: %s has no %s score", ErrNotFound, playerID, pos)
	}
	fp := toFixedPoint(combo)
	return types.Entry{
		Rank:     1 + countAbove(s.roots[pos], fp),
		PlayerID: playerID,
		Position: pos,
		Combo:    toFloat(fp),
		Fit:      r.Fit[pos],
	}, nil
}

// Count returns the number of stored results.
func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mu.RLock()
				count := len(s.byID)
				s.mu.RUnlock()
				metrics.UpdateStoreRecords(count)
			}
		}
	}()
}

func cloneResult(r model.Result) model.Result {
	c := r
	c.Fit = cloneScores(r.Fit)
	c.Rel = cloneScores(r.Rel)
	c.Combo = cloneScores(r.Combo)
	if r.Overall != nil {
		c.Overall = model.Float(*r.Overall)
	}
	if r.GoalkeeperFit != nil {
		c.GoalkeeperFit = model.Float(*r.GoalkeeperFit)
	}
	return c
}

func cloneScores(m map[position.Position]float64) map[position.Position]float64 {
	if m == nil {
		return nil
	}
	out := make(map[position.Position]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
