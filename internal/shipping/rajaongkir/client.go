// Package rajaongkir implements the shipping.Provider contract against a
// RajaOngkir-compatible rate API. The storefront treats it as best effort:
// callers degrade to zero-cost shipping when quotes cannot be fetched.
package rajaongkir

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/strhma/ukm-catalog/internal/domain/shipping"
)

// APIError is a structured failure reported by the rate API itself, as
// opposed to a transport error.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shipping api error %d: %s", e.Code, e.Description)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the rate API, e.g. https://api.rajaongkir.com/starter.
	BaseURL string
	// APIKey is sent in the "key" request header.
	APIKey string
	// OriginCityID identifies the warehouse city all shipments depart from.
	OriginCityID string
	// Timeout bounds each rate request. Defaults to 10s.
	Timeout time.Duration
}

var _ shipping.Provider = (*Client)(nil)

// Client is an HTTP shipping.Provider.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a rate client from the given configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Cost returns the quotes for delivering weightGrams to destination via the
// given courier code.
func (c *Client) Cost(ctx context.Context, destination string, weightGrams int, courier string) ([]shipping.Quote, error) {
	form := url.Values{
		"origin":      {c.cfg.OriginCityID},
		"destination": {destination},
		"weight":      {strconv.Itoa(weightGrams)},
		"courier":     {strings.ToLower(courier)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/cost", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build rate request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "rate request")
	}
	defer func() { _ = resp.Body.Close() }()

	quotes, err := decodeCostResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, shipping.ErrNoRates
	}
	return quotes, nil
}

// CostAll queries several couriers concurrently and merges their quotes,
// sorted by price. Individual courier failures are tolerated; only when every
// courier fails does the combined error surface.
func (c *Client) CostAll(ctx context.Context, destination string, weightGrams int, couriers []string) ([]shipping.Quote, error) {
	var (
		mu      sync.Mutex
		merged  []shipping.Quote
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, courier := range couriers {
		g.Go(func() error {
			quotes, err := c.Cost(gctx, destination, weightGrams, courier)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				return nil // tolerate per-courier failure
			}
			merged = append(merged, quotes...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(merged) == 0 {
		if lastErr != nil {
			return nil, errors.Wrap(lastErr, "all couriers failed")
		}
		return nil, shipping.ErrNoRates
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Cost.LessThan(merged[j].Cost)
	})
	return merged, nil
}

// decodeCostResponse walks the nested rajaongkir payload:
//
//	{"rajaongkir": {"status": {...}, "results": [
//	    {"code": "jne", "name": "...", "costs": [
//	        {"service": "REG", "description": "...", "cost": [
//	            {"value": 15000, "etd": "2-3", "note": ""}]}]}]}}
func decodeCostResponse(r io.Reader) ([]shipping.Quote, error) {
	d := jx.Decode(r, 4096)

	var (
		quotes []shipping.Quote
		apiErr *APIError
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "rajaongkir" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "status":
				st, err := decodeStatus(d)
				if err != nil {
					return err
				}
				if st.Code != 200 {
					apiErr = st
				}
				return nil
			case "results":
				return d.Arr(func(d *jx.Decoder) error {
					qs, err := decodeCarrier(d)
					if err != nil {
						return err
					}
					quotes = append(quotes, qs...)
					return nil
				})
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode rate response")
	}
	if apiErr != nil {
		return nil, apiErr
	}
	return quotes, nil
}

func decodeStatus(d *jx.Decoder) (*APIError, error) {
	st := &APIError{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			code, err := d.Int()
			if err != nil {
				return err
			}
			st.Code = code
			return nil
		case "description":
			desc, err := d.Str()
			if err != nil {
				return err
			}
			st.Description = desc
			return nil
		default:
			return d.Skip()
		}
	})
	return st, err
}

func decodeCarrier(d *jx.Decoder) ([]shipping.Quote, error) {
	var (
		courier string
		quotes  []shipping.Quote
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			code, err := d.Str()
			if err != nil {
				return err
			}
			courier = strings.ToUpper(code)
			return nil
		case "costs":
			return d.Arr(func(d *jx.Decoder) error {
				q, err := decodeService(d)
				if err != nil {
					return err
				}
				quotes = append(quotes, q...)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	// The carrier code appears before costs in practice, but the decoder must
	// not depend on key order.
	for i := range quotes {
		quotes[i].Courier = courier
	}
	return quotes, nil
}

func decodeService(d *jx.Decoder) ([]shipping.Quote, error) {
	var (
		service     string
		description string
		priced      []shipping.Quote
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "service":
			s, err := d.Str()
			if err != nil {
				return err
			}
			service = s
			return nil
		case "description":
			s, err := d.Str()
			if err != nil {
				return err
			}
			description = s
			return nil
		case "cost":
			return d.Arr(func(d *jx.Decoder) error {
				var q shipping.Quote
				err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "value":
						v, err := d.Float64()
						if err != nil {
							return err
						}
						q.Cost = decimal.NewFromFloat(v)
						return nil
					case "etd":
						etd, err := d.Str()
						if err != nil {
							return err
						}
						q.ETA = etd
						return nil
					default:
						return d.Skip()
					}
				})
				if err != nil {
					return err
				}
				priced = append(priced, q)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	for i := range priced {
		priced[i].Service = service
		priced[i].Description = description
	}
	return priced, nil
}
