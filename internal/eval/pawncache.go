package eval

import "github.com/hailam/chesscore/internal/board"

// PawnEntry stores cached pawn structure evaluation. The terms only depend
// on pawns and kings, so entries are keyed by the king+pawn hash.
type PawnEntry struct {
	Key    uint64
	Mg     int16
	Eg     int16
	Passed board.Bitboard
}

// PawnTable is a direct-mapped cache owned by one evaluator.
type PawnTable struct {
	entries []PawnEntry
	mask    uint64
}

// NewPawnTable creates a pawn table of about sizeKB kilobytes.
func NewPawnTable(sizeKB int) *PawnTable {
	const entrySize = 24
	numEntries := max(sizeKB, 1) * 1024 / entrySize

	// Round down to power of 2
	size := 1
	for size*2 <= numEntries {
		size *= 2
	}

	return &PawnTable{
		entries: make([]PawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe looks up key.
func (pt *PawnTable) Probe(key uint64) (PawnEntry, bool) {
	e := pt.entries[key&pt.mask]
	return e, e.Key == key && key != 0
}

// Store saves an entry, replacing whatever shared its slot.
func (pt *PawnTable) Store(e PawnEntry) {
	pt.entries[e.Key&pt.mask] = e
}

// Clear empties the table.
func (pt *PawnTable) Clear() {
	clear(pt.entries)
}
