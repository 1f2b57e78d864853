package couriers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/httpclient"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"

	"github.com/shopspring/decimal"
)

const ServiceName = "courier"

var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

func ValidPincode(pin string) bool {
	return pincodeRe.MatchString(pin)
}

// Serviceability is the courier's coverage for one pincode.
type Serviceability struct {
	Pincode     string `json:"pincode"`
	Serviceable bool   `json:"serviceable"`
	COD         bool   `json:"cod"`
	Prepaid     bool   `json:"prepaid"`
	City        string `json:"city"`
	State       string `json:"state"`
	EDD         int    `json:"edd_days"`
}

type Area struct {
	Name     string `json:"name"`
	Pincode  string `json:"pincode"`
	District string `json:"district"`
	State    string `json:"state"`
}

type ConsignmentRequest struct {
	Reference   string          `json:"reference"`
	Consignee   string          `json:"consignee"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Pincode     string          `json:"pincode"`
	Pieces      int             `json:"pieces"`
	DeclaredVal decimal.Decimal `json:"declared_value"`
	CODAmount   decimal.Decimal `json:"cod_amount"`
	Description string          `json:"description"`
}

type Consignment struct {
	AWB     string `json:"awb"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client talks to the courier relay: pincode serviceability, area search and consignment notes.
type Client struct {
	http *httpclient.Client
}

func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	opts := []httpclient.Option{httpclient.WithSanitizer(SanitizeJSON)}
	if apiToken != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Token "+apiToken))
	}
	return &Client{http: httpclient.New(ServiceName, baseURL, timeout, opts...)}
}

func (c *Client) CheckPincode(ctx context.Context, pincode string) (Serviceability, error) {
	if !ValidPincode(pincode) {
		return Serviceability{}, fmt.Errorf("%w: pincode must be 6 digits", orders.ErrValidation)
	}
	var out Serviceability
	if err := c.http.GetJSON(ctx, "/pincode/"+pincode, &out); err != nil {
		return Serviceability{}, err
	}
	if out.Pincode == "" {
		out.Pincode = pincode
	}
	return out, nil
}

func (c *Client) SearchArea(ctx context.Context, query string) ([]Area, error) {
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return nil, fmt.Errorf("%w: search needs at least 3 characters", orders.ErrValidation)
	}
	var out struct {
		Areas []Area `json:"areas"`
	}
	if err := c.http.GetJSON(ctx, "/areas?q="+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	return out.Areas, nil
}

func (c *Client) IssueConsignment(ctx context.Context, req ConsignmentRequest) (Consignment, error) {
	var out Consignment
	if err := c.http.PostJSON(ctx, "/consignments", req, &out); err != nil {
		return Consignment{}, err
	}
	if out.AWB == "" {
		msg := out.Message
		if msg == "" {
			msg = "no AWB in response"
		}
		return Consignment{}, &httpclient.ExternalServiceError{Service: ServiceName, Message: msg}
	}
	return out, nil
}

// SanitizeJSON escapes raw line breaks and tabs that appear inside JSON string literals.
// The relay passes through free-text address fields that contain them unescaped.
func SanitizeJSON(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString, escaped := false, false
	for _, b := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			case b == '\n':
				out = append(out, '\\', 'n')
				continue
			case b == '\r':
				out = append(out, '\\', 'r')
				continue
			case b == '\t':
				out = append(out, '\\', 't')
				continue
			}
		} else if b == '"' {
			inString = true
		}
		out = append(out, b)
	}
	return out
}

// Dispatcher books consignments for packed orders.
type Dispatcher struct {
	client  *Client
	courier string
	now     func() time.Time
}

func NewDispatcher(client *Client, courierName string) *Dispatcher {
	return &Dispatcher{client: client, courier: courierName, now: time.Now}
}

func (d *Dispatcher) Ship(ctx context.Context, o orders.Order) (orders.Shipment, error) {
	a := o.ShippingAddress
	pieces := 0
	names := make([]string, 0, len(o.Items))
	for _, li := range o.Items {
		pieces += li.Quantity
		names = append(names, li.Name)
	}
	req := ConsignmentRequest{
		Reference:   o.ID,
		Consignee:   a.Name,
		Phone:       a.Phone,
		Address:     joinNonEmpty(", ", a.Line1, a.Line2, a.District),
		City:        a.City,
		State:       a.State,
		Pincode:     a.Pincode,
		Pieces:      pieces,
		DeclaredVal: o.TotalAmount,
		CODAmount:   decimal.Zero,
		Description: strings.Join(names, ", "),
	}
	if o.PaymentMethod == orders.PaymentCOD {
		req.CODAmount = o.TotalAmount
	}
	c, err := d.client.IssueConsignment(ctx, req)
	if err != nil {
		return orders.Shipment{}, err
	}
	return orders.Shipment{Courier: d.courier, AWB: c.AWB, IssuedAt: d.now().UTC()}, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
