package reservation

import "github.com/google/uuid"

// FindConflict returns the first reservation in existing whose slot overlaps
// candidate, ignoring cancelled reservations and the reservation named by exclude.
func FindConflict(existing []*Reservation, candidate TimeSlot, exclude uuid.UUID) *Reservation {
	for _, r := range existing {
		if r == nil || r.id == exclude || !r.status.Blocks() {
			continue
		}
		if r.slot.Overlaps(candidate) {
			return r
		}
	}
	return nil
}
