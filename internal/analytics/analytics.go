package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultChurnAfter is how long a customer can go without ordering before counting as churned.
const DefaultChurnAfter = 60 * 24 * time.Hour

type Segment string

const (
	SegmentOneTime  Segment = "one-time"
	SegmentRepeat   Segment = "repeat"
	SegmentFrequent Segment = "frequent"
)

// SegmentFor buckets a customer by lifetime order count.
func SegmentFor(orderCount int) Segment {
	switch {
	case orderCount >= 5:
		return SegmentFrequent
	case orderCount >= 2:
		return SegmentRepeat
	case orderCount == 1:
		return SegmentOneTime
	}
	return ""
}

func ParseSegment(raw string) (Segment, error) {
	switch s := Segment(strings.ToLower(strings.TrimSpace(raw))); s {
	case "", SegmentOneTime, SegmentRepeat, SegmentFrequent:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown customer segment %q", ErrValidation, raw)
}

// Facets narrow the windowed metrics. Zero fields match every order.
type Facets struct {
	Category      string
	ProductID     string
	PaymentMethod orders.PaymentMethod
	Segment       Segment
}

type Query struct {
	Window Window
	Facets Facets
}

type Revenue struct {
	Gross             decimal.Decimal `json:"gross"`
	Net               decimal.Decimal `json:"net"`
	Loss              decimal.Decimal `json:"loss"`
	Orders            int             `json:"orders"`
	NetOrders         int             `json:"net_orders"`
	LostOrders        int             `json:"lost_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type Customers struct {
	Active     int             `json:"active"`
	OneTime    int             `json:"one_time"`
	Repeat     int             `json:"repeat"`
	Frequent   int             `json:"frequent"`
	New        int             `json:"new"`
	Returning  int             `json:"returning"`
	Churned    int             `json:"churned"`
	RepeatRate decimal.Decimal `json:"repeat_rate"`
	Registered int             `json:"registered"`
	Signups    int             `json:"signups"`
}

type ProductRollup struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CategoryRollup struct {
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type DailyPoint struct {
	Date   string          `json:"date"`
	Orders int             `json:"orders"`
	Gross  decimal.Decimal `json:"gross"`
	Net    decimal.Decimal `json:"net"`
}

// Report is the dashboard payload. Amounts are exact; call Rounded before presenting.
type Report struct {
	Window         Window           `json:"window"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Revenue        Revenue          `json:"revenue"`
	AllTime        Revenue          `json:"all_time"`
	Customers      Customers        `json:"customers"`
	Products       []ProductRollup  `json:"products"`
	Categories     []CategoryRollup `json:"categories"`
	Daily          []DailyPoint     `json:"daily"`
	SkippedUndated int              `json:"skipped_undated"`
}

func lost(s orders.Status) bool {
	return s == orders.StatusCancelled || s == orders.StatusReturned
}

func (r *Revenue) add(o orders.Order) {
	r.Orders++
	r.Gross = r.Gross.Add(o.TotalAmount)
	if lost(o.Status) {
		r.LostOrders++
		r.Loss = r.Loss.Add(o.TotalAmount)
		return
	}
	r.NetOrders++
	r.Net = r.Net.Add(o.TotalAmount)
}

func (r *Revenue) finish() {
	if r.NetOrders > 0 {
		r.AverageOrderValue = r.Net.Div(decimal.NewFromInt(int64(r.NetOrders)))
	}
}

type customer struct {
	count int
	first time.Time
	last  time.Time
}

// Compute derives the report from a full order history. The input may be in any order.
// Orders without a timestamp only count in the all-time block and in lifetime order counts.
func Compute(all []orders.Order, roster []users.User, q Query, now time.Time, churnAfter time.Duration) Report {
	if churnAfter <= 0 {
		churnAfter = DefaultChurnAfter
	}
	rep := Report{
		Window:      q.Window,
		GeneratedAt: now,
		Products:    []ProductRollup{},
		Categories:  []CategoryRollup{},
		Daily:       []DailyPoint{},
	}

	// lifetime history per customer, before any filter
	customers := make(map[string]*customer)
	for _, o := range all {
		rep.AllTime.add(o)
		if o.UserID == "" || o.UserID == orders.GuestUserID {
			continue
		}
		c, ok := customers[o.UserID]
		if !ok {
			c = &customer{}
			customers[o.UserID] = c
		}
		c.count++
		if o.CreatedAt.IsZero() {
			continue
		}
		if c.first.IsZero() || o.CreatedAt.Before(c.first) {
			c.first = o.CreatedAt
		}
		if o.CreatedAt.After(c.last) {
			c.last = o.CreatedAt
		}
	}
	rep.AllTime.finish()

	title := cases.Title(language.English)
	category := catalog.NormalizeName(q.Facets.Category)
	filtered := make([]orders.Order, 0, len(all))
	for _, o := range all {
		if q.Window.Bounded() && o.CreatedAt.IsZero() {
			rep.SkippedUndated++
			continue
		}
		if !q.Window.Contains(o.CreatedAt) {
			continue
		}
		if !matchFacets(o, q.Facets, category, customers) {
			continue
		}
		filtered = append(filtered, o)
	}

	active := make(map[string]bool)
	products := make(map[string]*ProductRollup)
	categories := make(map[string]*CategoryRollup)
	daily := make(map[string]*DailyPoint)
	for _, o := range filtered {
		rep.Revenue.add(o)
		if _, ok := customers[o.UserID]; ok {
			active[o.UserID] = true
		}

		for _, li := range o.Items {
			sub := li.Subtotal()
			p, ok := products[li.ProductID]
			if !ok {
				p = &ProductRollup{ProductID: li.ProductID, Name: li.Name}
				products[li.ProductID] = p
			}
			p.Quantity += li.Quantity
			p.Revenue = p.Revenue.Add(sub)

			key := catalog.NormalizeName(li.Category)
			if key == "" {
				key = "uncategorized"
			}
			cr, ok := categories[key]
			if !ok {
				cr = &CategoryRollup{Key: key, Name: title.String(strings.Join(strings.Fields(li.Category), " "))}
				if cr.Name == "" {
					cr.Name = "Uncategorized"
				}
				categories[key] = cr
			}
			cr.Quantity += li.Quantity
			cr.Revenue = cr.Revenue.Add(sub)
		}

		if o.CreatedAt.IsZero() {
			continue
		}
		day := o.CreatedAt.In(now.Location()).Format(time.DateOnly)
		d, ok := daily[day]
		if !ok {
			d = &DailyPoint{Date: day}
			daily[day] = d
		}
		d.Orders++
		d.Gross = d.Gross.Add(o.TotalAmount)
		if !lost(o.Status) {
			d.Net = d.Net.Add(o.TotalAmount)
		}
	}
	rep.Revenue.finish()

	rep.Customers = segmentCustomers(customers, active, q, now, churnAfter)
	for _, u := range roster {
		if u.IsAdmin {
			continue
		}
		rep.Customers.Registered++
		if q.Window.Contains(u.CreatedAt) {
			rep.Customers.Signups++
		}
	}

	for _, p := range products {
		rep.Products = append(rep.Products, *p)
	}
	sort.Slice(rep.Products, func(i, j int) bool {
		if c := rep.Products[i].Revenue.Cmp(rep.Products[j].Revenue); c != 0 {
			return c > 0
		}
		return rep.Products[i].ProductID < rep.Products[j].ProductID
	})
	for _, c := range categories {
		rep.Categories = append(rep.Categories, *c)
	}
	sort.Slice(rep.Categories, func(i, j int) bool {
		if c := rep.Categories[i].Revenue.Cmp(rep.Categories[j].Revenue); c != 0 {
			return c > 0
		}
		return rep.Categories[i].Key < rep.Categories[j].Key
	})
	rep.Daily = dailySeries(daily, q.Window)
	return rep
}

func matchFacets(o orders.Order, f Facets, category string, customers map[string]*customer) bool {
	if f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.Segment != "" {
		c, ok := customers[o.UserID]
		if !ok || SegmentFor(c.count) != f.Segment {
			return false
		}
	}
	if category == "" && f.ProductID == "" {
		return true
	}
	for _, li := range o.Items {
		if category != "" && catalog.NormalizeName(li.Category) != category {
			continue
		}
		if f.ProductID != "" && li.ProductID != f.ProductID {
			continue
		}
		return true
	}
	return false
}

// segmentCustomers buckets the customers active in the filtered set. Churn looks at every
// known customer and ignores the window.
func segmentCustomers(customers map[string]*customer, active map[string]bool, q Query, now time.Time, churnAfter time.Duration) Customers {
	var out Customers
	churnedBefore := now.Add(-churnAfter)
	for id, c := range customers {
		if q.Facets.Segment != "" && SegmentFor(c.count) != q.Facets.Segment {
			continue
		}
		if !c.last.IsZero() && c.last.Before(churnedBefore) {
			out.Churned++
		}
		if !active[id] {
			continue
		}
		out.Active++
		switch SegmentFor(c.count) {
		case SegmentOneTime:
			out.OneTime++
		case SegmentRepeat:
			out.Repeat++
		case SegmentFrequent:
			out.Frequent++
		}
		if c.first.IsZero() {
			continue
		}
		if !q.Window.Bounded() || !c.first.Before(q.Window.Start) {
			out.New++
		} else {
			out.Returning++
		}
	}
	if out.Active > 0 {
		out.RepeatRate = decimal.NewFromInt(int64(out.Repeat + out.Frequent)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(out.Active)))
	}
	return out
}

const maxFilledDays = 366

// dailySeries orders the points by date. Bounded windows of up to a year get a point for
// every day, including days without orders.
func dailySeries(points map[string]*DailyPoint, w Window) []DailyPoint {
	out := make([]DailyPoint, 0, len(points))
	if w.Bounded() && w.End.Sub(w.Start) <= maxFilledDays*24*time.Hour {
		for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
			key := d.Format(time.DateOnly)
			if p, ok := points[key]; ok {
				out = append(out, *p)
			} else {
				out = append(out, DailyPoint{Date: key})
			}
		}
		return out
	}
	for _, p := range points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Rounded returns a copy with every amount rounded to two decimal places.
func (r Report) Rounded() Report {
	round := func(v *Revenue) {
		v.Gross, v.Net, v.Loss = v.Gross.Round(2), v.Net.Round(2), v.Loss.Round(2)
		v.AverageOrderValue = v.AverageOrderValue.Round(2)
	}
	round(&r.Revenue)
	round(&r.AllTime)
	r.Customers.RepeatRate = r.Customers.RepeatRate.Round(2)

	r.Products = append([]ProductRollup(nil), r.Products...)
	for i := range r.Products {
		r.Products[i].Revenue = r.Products[i].Revenue.Round(2)
	}
	r.Categories = append([]CategoryRollup(nil), r.Categories...)
	for i := range r.Categories {
		r.Categories[i].Revenue = r.Categories[i].Revenue.Round(2)
	}
	r.Daily = append([]DailyPoint(nil), r.Daily...)
	for i := range r.Daily {
		r.Daily[i].Gross = r.Daily[i].Gross.Round(2)
		r.Daily[i].Net = r.Daily[i].Net.Round(2)
	}
	return r
}

// Aggregator loads the full history on every call; nothing is cached between reports.
type Aggregator struct {
	orders     orders.Store
	users      users.Store
	churnAfter time.Duration
	now        func() time.Time
}

func NewAggregator(o orders.Store, u users.Store, churnAfter time.Duration) *Aggregator {
	return &Aggregator{orders: o, users: u, churnAfter: churnAfter, now: time.Now}
}

func (a *Aggregator) Now() time.Time {
	return a.now()
}

func (a *Aggregator) Report(ctx context.Context, q Query) (Report, error) {
	all, err := a.orders.Query(ctx, orders.Filter{})
	if err != nil {
		return Report{}, fmt.Errorf("loading orders: %w", err)
	}
	var roster []users.User
	if a.users != nil {
		roster, err = a.users.List(ctx)
		if err != nil {
			// the roster only feeds registration counts
			slog.Warn("loading users for analytics failed",
				slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
				slog.String(logkey.ERROR, err.Error()))
		}
	}
	return Compute(all, roster, q, a.now(), a.churnAfter), nil
}
