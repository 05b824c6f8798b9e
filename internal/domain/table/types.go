package table

type Status string

const (
	StatusIdle        Status = "idle"
	StatusInUse       Status = "in_use"
	StatusReserved    Status = "reserved"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusInUse, StatusReserved, StatusMaintenance, StatusError:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", ErrUnknownStatus
	}
	return st, nil
}
