package engine

import (
	"math"
	"sync/atomic"

	"github.com/hailam/chesscore/internal/board"
)

// Bound tells how a stored score relates to the true value.
type Bound uint8

const (
	BoundNone  Bound = iota
	BoundUpper       // failed low
	BoundLower       // failed high
	BoundExact = BoundUpper | BoundLower
)

const (
	bucketSlots   = 4
	bucketBytes   = bucketSlots * 16
	generationMax = 63
	hashFullSlots = 1000
)

// TTEntry is the decoded form of a stored search result.
type TTEntry struct {
	Move       board.CompactMove
	Eval       int
	Score      int
	Depth      int
	Bound      Bound
	Generation uint8
}

// Data word layout, low to high:
// move 16 | eval 16 | score 16 | depth 8 | bound 2 | generation 6.
func (e TTEntry) pack() uint64 {
	return uint64(e.Move) |
		uint64(uint16(int16(e.Eval)))<<16 |
		uint64(uint16(int16(e.Score)))<<32 |
		uint64(uint8(int8(e.Depth)))<<48 |
		uint64(e.Bound&3)<<56 |
		uint64(e.Generation&generationMax)<<58
}

func unpack(data uint64) TTEntry {
	return TTEntry{
		Move:       board.CompactMove(data),
		Eval:       int(int16(data >> 16)),
		Score:      int(int16(data >> 32)),
		Depth:      int(int8(data >> 48)),
		Bound:      Bound(data >> 56 & 3),
		Generation: uint8(data >> 58),
	}
}

func withGeneration(data uint64, gen uint8) uint64 {
	return data&^(generationMax<<58) | uint64(gen)<<58
}

// ttSlot holds one entry as two words. token is hash XOR data, so a slot
// read while another goroutine was writing it fails verification.
type ttSlot struct {
	token atomic.Uint64
	data  atomic.Uint64
}

func (s *ttSlot) load() (hash, data uint64) {
	data = s.data.Load()
	return s.token.Load() ^ data, data
}

func (s *ttSlot) store(hash, data uint64) {
	s.data.Store(data)
	s.token.Store(hash ^ data)
}

type ttBucket [bucketSlots]ttSlot

// TranspositionTable is shared by all search workers without locks.
// Concurrent saves to one bucket may lose an update; torn reads are
// rejected by the token check and reported as misses.
type TranspositionTable struct {
	buckets    []ttBucket
	mask       uint64
	generation atomic.Uint32
}

// NewTranspositionTable creates a table using at most sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	tt := &TranspositionTable{}
	tt.Resize(sizeMB)
	return tt
}

// Resize reallocates the table, discarding its contents.
func (tt *TranspositionTable) Resize(sizeMB int) {
	n := roundDownToPowerOf2(uint64(max(sizeMB, 1)) << 20 / bucketBytes)
	tt.buckets = make([]ttBucket, n)
	tt.mask = n - 1
	tt.generation.Store(1)
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Clear empties every slot.
func (tt *TranspositionTable) Clear() {
	clear(tt.buckets)
	tt.generation.Store(1)
}

// Buckets reports the number of four-slot buckets.
func (tt *TranspositionTable) Buckets() int { return len(tt.buckets) }

func (tt *TranspositionTable) bucket(hash uint64) *ttBucket {
	return &tt.buckets[hash&tt.mask]
}

// Probe looks up hash. On a hit the slot is marked as used by the current
// search and a copy of its contents is returned.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	gen := uint8(tt.generation.Load())
	b := tt.bucket(hash)
	for i := range b {
		h, data := b[i].load()
		if h != hash || data == 0 {
			continue
		}
		e := unpack(data)
		if e.Bound == BoundNone {
			return TTEntry{}, false
		}
		if e.Generation != gen {
			b[i].store(hash, withGeneration(data, gen))
			e.Generation = gen
		}
		return e, true
	}
	return TTEntry{}, false
}

// Save stores a search result. score is relative to the root and is
// converted with ScoreToTT using ply.
func (tt *TranspositionTable) Save(hash uint64, bound Bound, depth, ply, eval, score int, move board.CompactMove) {
	gen := uint8(tt.generation.Load())
	b := tt.bucket(hash)

	var target *ttSlot
	for i := range b {
		h, data := b[i].load()
		if h != hash || data == 0 {
			continue
		}
		old := unpack(data)
		if bound != BoundExact && depth < old.Depth-2 {
			return
		}
		if move == 0 {
			move = old.Move
		}
		target = &b[i]
		break
	}

	if target == nil {
		lowest := math.MaxInt
		for i := range b {
			_, data := b[i].load()
			if data == 0 {
				target = &b[i]
				break
			}
			e := unpack(data)
			priority := e.Depth
			if e.Generation == gen {
				priority += 256
			}
			if priority < lowest {
				lowest = priority
				target = &b[i]
			}
		}
	}

	e := TTEntry{
		Move:       move,
		Eval:       clamp(eval, -Infinity, Infinity),
		Score:      clamp(ScoreToTT(score, ply), -Infinity, Infinity),
		Depth:      clamp(depth, 0, math.MaxInt8),
		Bound:      bound,
		Generation: gen,
	}
	target.store(hash, e.pack())
}

// Age starts a new search generation. When the counter wraps every entry
// is marked stale so the whole table becomes evictable. It must not run
// concurrently with a search.
func (tt *TranspositionTable) Age() {
	gen := tt.generation.Load() + 1
	if gen <= generationMax {
		tt.generation.Store(gen)
		return
	}
	for bi := range tt.buckets {
		b := &tt.buckets[bi]
		for i := range b {
			h, data := b[i].load()
			if data != 0 {
				b[i].store(h, withGeneration(data, 0))
			}
		}
	}
	tt.generation.Store(1)
}

// Generation returns the tag given to entries written by the current search.
func (tt *TranspositionTable) Generation() uint8 {
	return uint8(tt.generation.Load())
}

// HashFull estimates, in permille, how much of the table belongs to the
// current search by sampling the first slots.
func (tt *TranspositionTable) HashFull() int {
	gen := uint8(tt.generation.Load())
	sampled, used := 0, 0
	for bi := 0; bi < len(tt.buckets) && sampled < hashFullSlots; bi++ {
		b := &tt.buckets[bi]
		for i := range b {
			sampled++
			_, data := b[i].load()
			if data != 0 && unpack(data).Generation == gen {
				used++
			}
		}
	}
	if sampled == 0 {
		return 0
	}
	return used * 1000 / sampled
}
