package gateway

import "strings"

// Status is the normalized gateway-side state of a transaction.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

// The gateway answers status checks with several synonymous strings
// depending on the operator behind the transaction.
var successStatuses = map[string]bool{
	"SUCCEEDED":  true,
	"SUCCESS":    true,
	"SUCCESSFUL": true,
	"COMPLETED":  true,
	"PAID":       true,
}

var failureStatuses = map[string]bool{
	"FAILED":   true,
	"FAILURE":  true,
	"REJECTED": true,
	"DECLINED": true,
	"EXPIRED":  true,
}

// NormalizeStatus folds the gateway's status vocabulary into the three
// states the poller acts on. Anything unrecognized stays PENDING.
func NormalizeStatus(raw string) Status {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case successStatuses[s]:
		return StatusSucceeded
	case failureStatuses[s]:
		return StatusFailed
	default:
		return StatusPending
	}
}
