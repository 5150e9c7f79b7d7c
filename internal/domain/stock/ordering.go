package stock

import (
	"fmt"
	"time"
)

// SameDayExpiry decides whether an item may still be ordered on its
// expiration date.
type SameDayExpiry string

const (
	// SameDayReject treats an item expiring today as already expired.
	SameDayReject SameDayExpiry = "reject"
	// SameDayAllow keeps an item orderable through its whole expiration date.
	SameDayAllow SameDayExpiry = "allow"
)

// ParseSameDayExpiry validates a configured policy value
func ParseSameDayExpiry(s string) (SameDayExpiry, error) {
	switch SameDayExpiry(s) {
	case SameDayReject, SameDayAllow:
		return SameDayExpiry(s), nil
	case "":
		return SameDayReject, nil
	default:
		return "", fmt.Errorf("unknown same-day expiry policy %q (want %q or %q)", s, SameDayReject, SameDayAllow)
	}
}

// ExpiryPolicy evaluates expiration and lead time at calendar-day granularity
// in a fixed location. The same policy drives the availability check and the
// expiry sweep.
type ExpiryPolicy struct {
	SameDay  SameDayExpiry
	Location *time.Location
}

// DefaultExpiryPolicy rejects same-day expiry in UTC
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{SameDay: SameDayReject, Location: time.UTC}
}

func (p ExpiryPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// StartOfDay truncates t to midnight in the policy location
func (p ExpiryPolicy) StartOfDay(t time.Time) time.Time {
	t = t.In(p.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.location())
}

// Cutoff is the instant before which an expiration date counts as expired.
func (p ExpiryPolicy) Cutoff(now time.Time) time.Time {
	today := p.StartOfDay(now)
	if p.SameDay == SameDayAllow {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// IsExpired reports whether an item expiring at exp is expired at now
func (p ExpiryPolicy) IsExpired(exp, now time.Time) bool {
	return exp.Before(p.Cutoff(now))
}

// EarliestDelivery is the first day a delivery may be scheduled when the item
// needs advanceDays of notice.
func (p ExpiryPolicy) EarliestDelivery(now time.Time, advanceDays int) time.Time {
	return p.StartOfDay(now).AddDate(0, 0, advanceDays)
}

// OrderingReason explains a refused ordering decision
type OrderingReason string

const (
	ReasonNone                 OrderingReason = ""
	ReasonExpired              OrderingReason = CodeExpired
	ReasonInsufficientLeadTime OrderingReason = CodeInsufficientLeadTime
)

// Decision is the outcome of an ordering check
type Decision struct {
	Allowed  bool           `json:"allowed"`
	Reason   OrderingReason `json:"reason,omitempty"`
	Earliest *time.Time     `json:"earliest_delivery,omitempty"`
}

// Err converts a refusal into its domain error
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonExpired:
		return ErrExpired
	case ReasonInsufficientLeadTime:
		return ErrInsufficientLeadTime
	default:
		return nil
	}
}

// EvaluateOrdering decides whether the item may be ordered now for delivery on
// deliveryDate. Stock counts are not consulted; reserving does that.
// Items without an advance order window accept any delivery date.
func EvaluateOrdering(item *SellableItem, deliveryDate *time.Time, now time.Time, policy ExpiryPolicy) Decision {
	if item.IsExpired(policy, now) {
		return Decision{Reason: ReasonExpired}
	}
	if deliveryDate != nil && item.AdvanceOrderDays > 0 {
		earliest := policy.EarliestDelivery(now, item.AdvanceOrderDays)
		if policy.StartOfDay(*deliveryDate).Before(earliest) {
			return Decision{Reason: ReasonInsufficientLeadTime, Earliest: &earliest}
		}
	}
	return Decision{Allowed: true}
}
