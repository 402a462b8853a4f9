package push

import "time"

// DeliveryResult is the outcome of one channel call for one user.
// It is always returned by value; no engine entry point returns an error.
//
// Invariant: Sent + Failed == Total.
type DeliveryResult struct {
	Success        bool   `json:"success"`
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
	Total          int    `json:"total"`
	InvalidRemoved int    `json:"invalid_removed,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMS     int64  `json:"duration_ms,omitempty"`
}

// failure builds an empty unsuccessful result carrying err's message.
func failure(err error) DeliveryResult {
	return DeliveryResult{Success: false, Error: err.Error()}
}

// tally accumulates per-endpoint outcomes into a DeliveryResult.
type tally struct {
	sent, failed, removed int
}

func (t tally) result(start time.Time, withDuration bool) DeliveryResult {
	r := DeliveryResult{
		Success:        t.sent > 0,
		Sent:           t.sent,
		Failed:         t.failed,
		Total:          t.sent + t.failed,
		InvalidRemoved: t.removed,
	}
	if withDuration {
		r.DurationMS = time.Since(start).Milliseconds()
	}
	return r
}
