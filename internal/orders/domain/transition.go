package domain

import (
	"fmt"
	"strings"
	"time"
)

// StockMovement is a quantity of a product moving back to or out of inventory.
type StockMovement struct {
	ProductID string
	Quantity  int
}

// Transition is a planned change to an order. It is computed from a loaded
// order and written in one unit of work: status compare-and-set, tracking
// append, and the optional stock release.
type Transition struct {
	OrderID    string
	From       OrderStatus
	To         OrderStatus
	Entry      TrackingEntry
	ApprovedAt *time.Time
	Release    *StockMovement
	At         time.Time
}

// StatusChanged reports whether the transition moves the coarse status.
func (t Transition) StatusChanged() bool {
	return t.From != t.To
}

func (o Order) plan(to OrderStatus, entry TrackingEntry, now time.Time) Transition {
	entry.Timestamp = now
	t := Transition{
		OrderID: o.ID,
		From:    o.Status,
		To:      to,
		Entry:   entry,
		At:      now,
	}
	if to == StatusApproved && o.ApprovedAt == nil {
		at := now
		t.ApprovedAt = &at
	}
	if o.Status.HoldsStock() && !to.HoldsStock() {
		t.Release = &StockMovement{ProductID: o.ProductID, Quantity: o.Quantity}
	}
	return t
}

func (o Order) requireStatus(action string, want OrderStatus) error {
	if o.Status != want {
		return fmt.Errorf("%w: cannot %s an order that is %s", ErrInvalidTransition, action, o.Status)
	}
	return nil
}

// Approve accepts a pending order.
func (o Order) Approve(now time.Time) (Transition, error) {
	if err := o.requireStatus("approve", StatusPending); err != nil {
		return Transition{}, err
	}
	return o.plan(StatusApproved, TrackingEntry{
		Status:   StatusApproved.Label(),
		Location: "System",
		Note:     "Order approved by manager",
	}, now), nil
}

// Reject declines a pending order and releases its stock.
func (o Order) Reject(reason string, now time.Time) (Transition, error) {
	if err := o.requireStatus("reject", StatusPending); err != nil {
		return Transition{}, err
	}
	note := strings.TrimSpace(reason)
	if note == "" {
		note = "Order rejected by manager"
	}
	return o.plan(StatusRejected, TrackingEntry{
		Status:   StatusRejected.Label(),
		Location: "System",
		Note:     note,
	}, now), nil
}

// Cancel withdraws a pending order on behalf of its buyer.
func (o Order) Cancel(c Caller, now time.Time) (Transition, error) {
	if !o.OwnedBy(c) {
		return Transition{}, fmt.Errorf("%w: only the buyer who placed the order may cancel it", ErrUnauthorized)
	}
	if err := o.requireStatus("cancel", StatusPending); err != nil {
		return Transition{}, err
	}
	return o.plan(StatusCancelled, TrackingEntry{
		Status:   StatusCancelled.Label(),
		Location: "System",
		Note:     "Cancelled by buyer",
	}, now), nil
}

// ChangeStatus moves the order to any legal successor. Repeating the current
// status of a live order only appends a tracking entry.
func (o Order) ChangeStatus(to OrderStatus, note string, now time.Time) (Transition, error) {
	if _, ok := validNext[to]; !ok {
		return Transition{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	switch {
	case to == o.Status && !o.Status.IsTerminal():
	case CanTransition(o.Status, to):
	default:
		return Transition{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidTransition, o.Status, to)
	}
	if strings.TrimSpace(note) == "" {
		note = fmt.Sprintf("Status changed from %s to %s", o.Status, to)
	}
	return o.plan(to, TrackingEntry{
		Status:   to.Label(),
		Location: "System",
		Note:     note,
	}, now), nil
}

// Track appends a free-text entry. A label naming a fulfilment milestone that
// is a legal next step also advances the status; stock is never touched.
func (o Order) Track(label, location, note string, now time.Time) (Transition, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Transition{}, fmt.Errorf("%w: tracking status is required", ErrValidation)
	}
	if strings.TrimSpace(location) == "" {
		location = "Warehouse"
	}
	to := o.Status
	if milestone, ok := MilestoneStatus(label); ok && CanTransition(o.Status, milestone) {
		to = milestone
	}
	t := o.plan(to, TrackingEntry{Status: label, Location: location, Note: note}, now)
	t.Release = nil
	return t, nil
}

// Apply returns a copy of the order with the transition applied.
func (o Order) Apply(t Transition) Order {
	o.Status = t.To
	o.Tracking = append(append([]TrackingEntry(nil), o.Tracking...), t.Entry)
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		o.ApprovedAt = &at
	}
	o.UpdatedAt = t.At
	return o
}
