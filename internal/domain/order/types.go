package order

type Status string

const (
	StatusActive            Status = "active"
	StatusPendingSettlement Status = "pending_settlement"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPendingSettlement, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// OccupiesTable reports whether the order still holds its table.
func (s Status) OccupiesTable() bool {
	return s == StatusActive
}
