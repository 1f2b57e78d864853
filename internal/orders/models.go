package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// GuestUserID is the owner of orders placed without an account.
const GuestUserID = "guest"

// Order is one purchase transaction. Items, ShippingAddress and the line item names are
// snapshots taken at checkout and never change afterwards.
type Order struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	Items               []LineItem           `json:"items"`
	TotalAmount         decimal.Decimal      `json:"total_amount"`
	Status              Status               `json:"status"`
	PaymentMethod       PaymentMethod        `json:"payment_method"`
	PaymentStatus       PaymentStatus        `json:"payment_status"`
	PaymentRef          string               `json:"payment_ref,omitempty"`
	CancellationRequest *CancellationRequest `json:"cancellation_request,omitempty"`
	ShippingAddress     Address              `json:"shipping_address"`
	Shipment            *Shipment            `json:"shipment,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	StatusUpdatedAt     time.Time            `json:"status_updated_at"`
	StatusUpdatedBy     string               `json:"status_updated_by,omitempty"`
	Version             int64                `json:"version"`
}

type LineItem struct {
	ProductID    string          `json:"product_id" validate:"required"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity" validate:"min=1"`
	SelectedSize string          `json:"selected_size"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Address struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,numeric,len=10"`
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city" validate:"required"`
	District string `json:"district,omitempty"`
	State    string `json:"state" validate:"required"`
	Pincode  string `json:"pincode" validate:"required,numeric,len=6"`
}

type CancellationRequest struct {
	Status          CancellationStatus `json:"status"`
	Reason          string             `json:"reason"`
	RequestedAt     time.Time          `json:"requested_at"`
	RequestedBy     string             `json:"requested_by"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	RejectedAt      *time.Time         `json:"rejected_at,omitempty"`
	ResolvedBy      string             `json:"resolved_by,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
}

// Shipment is the courier tracking state recorded when an order is dispatched.
type Shipment struct {
	Courier  string    `json:"courier"`
	AWB      string    `json:"awb"`
	IssuedAt time.Time `json:"issued_at"`
}

// Actor is whoever triggered a change: an admin or the owning customer.
type Actor struct {
	ID    string
	Admin bool
}

func (o Order) HasPendingCancellation() bool {
	return o.CancellationRequest != nil && o.CancellationRequest.Status == CancellationPending
}

// Clone returns a copy that shares no mutable state with o.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.CancellationRequest != nil {
		cr := *o.CancellationRequest
		c.CancellationRequest = &cr
	}
	if o.Shipment != nil {
		s := *o.Shipment
		c.Shipment = &s
	}
	return c
}

// ItemsTotal is the server-side total of all line items.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// NewOrder is the checkout payload written by the storefront.
type NewOrder struct {
	UserID          string           `json:"-"`
	Items           []LineItem       `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   PaymentMethod    `json:"payment_method" validate:"required"`
	ShippingAddress Address          `json:"shipping_address"`
	ClientTotal     *decimal.Decimal `json:"total_amount,omitempty"`
}
