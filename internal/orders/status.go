package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusAccepted   Status = "Accepted"
	StatusProcessing Status = "Processing"
	StatusPacked     Status = "Packed"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
	// StatusReturned appears in historical data only. No transition produces it.
	StatusReturned Status = "Returned"
)

var allStatuses = []Status{
	StatusPending, StatusAccepted, StatusProcessing, StatusPacked,
	StatusShipped, StatusDelivered, StatusCancelled, StatusReturned,
}

// AllowedTransitions is the order state flow. Cancelled is reachable from every
// non-terminal state; Delivered and Cancelled have no way out.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusPacked, StatusCancelled},
	StatusPacked:     {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

var allowedTransitionSet = buildTransitionSet(AllowedTransitions)

func buildTransitionSet(transitions map[Status][]Status) map[Status]map[Status]struct{} {
	set := make(map[Status]map[Status]struct{}, len(transitions))
	for from, tos := range transitions {
		next := make(map[Status]struct{}, len(tos))
		for _, to := range tos {
			next[to] = struct{}{}
		}
		set[from] = next
	}
	return set
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitionSet[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// cancellableStatuses are the states from which a customer may ask to cancel.
var cancellableStatuses = map[Status]bool{
	StatusPending:    true,
	StatusAccepted:   true,
	StatusProcessing: true,
	StatusPacked:     true,
}

func CanRequestCancellation(s Status) bool {
	return cancellableStatuses[s]
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing and surrounding whitespace and returns the canonical value.
func ParseStatus(raw string) (Status, error) {
	for _, v := range allStatuses {
		if strings.EqualFold(strings.TrimSpace(raw), string(v)) {
			return v, nil
		}
	}
	return "", validationf("unknown order status %q", raw)
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentCOD:
		return PaymentCOD, nil
	case PaymentOnline:
		return PaymentOnline, nil
	}
	return "", validationf("unknown payment method %q", raw)
}

func (m *PaymentMethod) UnmarshalText(b []byte) error {
	v, err := ParsePaymentMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

type PaymentStatus string

const (
	PaymentPending          PaymentStatus = "Pending"
	PaymentPaid             PaymentStatus = "Paid"
	PaymentFailed           PaymentStatus = "Failed"
	PaymentRefundProcessing PaymentStatus = "Refund Processing"
	PaymentRefunded         PaymentStatus = "Refunded"
)

var allPaymentStatuses = []PaymentStatus{
	PaymentPending, PaymentPaid, PaymentFailed, PaymentRefundProcessing, PaymentRefunded,
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	for _, v := range allPaymentStatuses {
		if strings.EqualFold(strings.TrimSpace(raw), string(v)) {
			return v, nil
		}
	}
	return "", validationf("unknown payment status %q", raw)
}

func (p *PaymentStatus) UnmarshalText(b []byte) error {
	v, err := ParsePaymentStatus(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type CancellationStatus string

const (
	CancellationPending  CancellationStatus = "pending"
	CancellationApproved CancellationStatus = "approved"
	CancellationRejected CancellationStatus = "rejected"
)

func (c *CancellationStatus) UnmarshalText(b []byte) error {
	switch v := CancellationStatus(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case CancellationPending, CancellationApproved, CancellationRejected:
		*c = v
		return nil
	}
	return validationf("unknown cancellation status %q", string(b))
}

// Decision resolves a pending cancellation request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	}
	return "", fmt.Errorf("%w: decision must be approve or reject, got %q", ErrValidation, raw)
}
