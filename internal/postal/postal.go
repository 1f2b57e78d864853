package postal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/httpclient"
)

const ServiceName = "postal"

var (
	ErrInvalidPincode = errors.New("pincode must be 6 digits")
	ErrUnknownPincode = errors.New("pincode not found")
)

var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

type Locality struct {
	Name     string `json:"name"`
	Block    string `json:"block,omitempty"`
	District string `json:"district"`
	State    string `json:"state"`
}

// Result is the lookup for one pincode. District and State come from the first post office;
// a pincode never spans states.
type Result struct {
	Pincode    string     `json:"pincode"`
	District   string     `json:"district"`
	State      string     `json:"state"`
	Localities []Locality `json:"localities"`
}

type Client struct {
	http *httpclient.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{http: httpclient.New(ServiceName, baseURL, timeout)}
}

type apiResponse struct {
	Message    string `json:"Message"`
	Status     string `json:"Status"`
	PostOffice []struct {
		Name     string `json:"Name"`
		Block    string `json:"Block"`
		District string `json:"District"`
		State    string `json:"State"`
	} `json:"PostOffice"`
}

func (c *Client) Lookup(ctx context.Context, pincode string) (Result, error) {
	pincode = strings.TrimSpace(pincode)
	if !pincodeRe.MatchString(pincode) {
		return Result{}, ErrInvalidPincode
	}
	var body []apiResponse
	if err := c.http.GetJSON(ctx, "/pincode/"+pincode, &body); err != nil {
		return Result{}, err
	}
	if len(body) == 0 || !strings.EqualFold(body[0].Status, "success") || len(body[0].PostOffice) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownPincode, pincode)
	}

	res := Result{Pincode: pincode, Localities: make([]Locality, 0, len(body[0].PostOffice))}
	for _, po := range body[0].PostOffice {
		res.Localities = append(res.Localities, Locality{
			Name: po.Name, Block: po.Block, District: po.District, State: po.State,
		})
	}
	res.District = res.Localities[0].District
	res.State = res.Localities[0].State
	return res, nil
}
