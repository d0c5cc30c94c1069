package models

// ApplyEvent folds one event into a local grid. It is the reducer clients use
// to reconstruct state from the ordered event stream, and it is idempotent: a
// cell event only replaces the local cell when the event carries a newer cell
// version, so duplicate delivery produces no observable change.
//
// Any two consumers applying the same ordered stream end up with identical
// grids, because cell events carry full post-mutation snapshots.
//
// The return value reports whether the grid changed.
func ApplyEvent(grid []*Cell, ev *SessionEvent) bool {
	if ev == nil {
		return false
	}

	switch ev.Type {
	case EventTypeCellMarked, EventTypeCellUnmarked:
		if ev.Cell == nil || ev.Position < 0 || ev.Position >= len(grid) {
			return false
		}
		current := grid[ev.Position]
		if current != nil && ev.Cell.Version <= current.Version {
			return false
		}
		grid[ev.Position] = ev.Cell.Clone()
		return true
	case EventTypePlayerJoined, EventTypePlayerLeft, EventTypeGameStarted, EventTypeGameEnded:
		// No grid effect. Seat and lifecycle bookkeeping is carried in the
		// session snapshot, not the grid.
		return false
	default:
		return false
	}
}
