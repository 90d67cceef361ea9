package domain

import "strings"

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusApproved   OrderStatus = "approved"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRejected   OrderStatus = "rejected"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusApproved,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRejected,
}

// FulfilmentStatuses are the statuses of orders a manager has accepted.
var FulfilmentStatuses = []OrderStatus{
	StatusApproved,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:    {StatusApproved: true, StatusRejected: true, StatusCancelled: true},
	StatusApproved:   {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRejected:   {},
}

// ParseStatus returns the status named by s.
func ParseStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := validNext[status]
	return status, ok
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// HoldsStock reports whether an order in this status keeps its reservation.
func (s OrderStatus) HoldsStock() bool {
	return s != StatusCancelled && s != StatusRejected
}

// Label is the tracking label for the status, e.g. "Shipped".
func (s OrderStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// milestones maps tracking labels that also move the coarse status.
var milestones = map[string]OrderStatus{
	"processing": StatusProcessing,
	"shipped":    StatusShipped,
	"delivered":  StatusDelivered,
}

// MilestoneStatus returns the status a free-text tracking label stands for, if any.
func MilestoneStatus(label string) (OrderStatus, bool) {
	status, ok := milestones[strings.ToLower(strings.TrimSpace(label))]
	return status, ok
}
