package reservation

import "time"

// Policy holds the hall's booking rules.
type Policy struct {
	MaxHorizon         time.Duration
	CancellationCutoff time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxHorizon:         30 * 24 * time.Hour,
		CancellationCutoff: time.Hour,
	}
}
