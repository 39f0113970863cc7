package model

import (
	"github.com/google/uuid"
)

// QueueMove moves one appointment from queue position From to To within a
// partition of size N. The rows strictly between the two positions, plus
// the one at To, shift one step toward From.
type QueueMove struct {
	AppointmentID uuid.UUID
	From          int
	To            int
}

// ClampPosition maps a requested position into [1, n].
func ClampPosition(requested int64, n int) int {
	if requested < 1 {
		return 1
	}
	if requested > int64(n) {
		return n
	}
	return int(requested)
}

// NoOp reports whether the move leaves the partition unchanged.
func (m QueueMove) NoOp() bool {
	return m.From == m.To
}

// ShiftRange returns the inclusive range of positions displaced by the move
// and the delta applied to them. Moving earlier shifts [To, From-1] by +1;
// moving later shifts [From+1, To] by -1.
func (m QueueMove) ShiftRange() (lo, hi, delta int) {
	switch {
	case m.To < m.From:
		return m.To, m.From - 1, 1
	case m.To > m.From:
		return m.From + 1, m.To, -1
	}
	return 0, -1, 0
}

// Apply returns the new queue number of a row currently at pos that is
// not the moved row.
func (m QueueMove) Apply(pos int) int {
	lo, hi, delta := m.ShiftRange()
	if pos >= lo && pos <= hi {
		return pos + delta
	}
	return pos
}
