// Package razorpay is a minimal client of the Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/rental-ledger/internal/domain/payment"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.razorpay.com/v1"

// Config holds API credentials.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.Status, e.Code, e.Description)
}

// Is reports throttling and server-side failures as payment.ErrGatewayUnavailable.
func (e *APIError) Is(target error) bool {
	return target == payment.ErrGatewayUnavailable &&
		(e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests)
}

// Client implements payment.Gateway.
type Client struct {
	http *http.Client
	cfg  Config
}

var _ payment.Gateway = (*Client)(nil)

// New creates a client whose outgoing requests are traced and measured.
func New(cfg Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
	}, nil
}

func (c *Client) KeyID() string { return c.cfg.KeyID }

// CreateOrder opens an order of req.AmountMinor paise.
func (c *Client) CreateOrder(ctx context.Context, req payment.GatewayOrderRequest) (*payment.GatewayOrder, error) {
	body := encodeOrderRequest(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(payment.ErrGatewayUnavailable, "post order: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(payment.ErrGatewayUnavailable, "read response: %v", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, decodeError(resp.StatusCode, data)
	}

	order, err := decodeOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return order, nil
}

func encodeOrderRequest(req payment.GatewayOrderRequest) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.AmountMinor) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Receipt) })
		if len(req.Notes) > 0 {
			keys := make([]string, 0, len(req.Notes))
			for k := range req.Notes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			e.Field("notes", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, k := range keys {
						e.Field(k, func(e *jx.Encoder) { e.Str(req.Notes[k]) })
					}
				})
			})
		}
	})
	return e.Bytes()
}

func decodeOrder(data []byte) (*payment.GatewayOrder, error) {
	var o payment.GatewayOrder
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "amount":
			o.AmountMinor, err = d.Int64()
		case "currency":
			o.Currency, err = d.Str()
		case "status":
			o.Status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, errors.New("order id missing")
	}
	return &o, nil
}

// decodeError reads {"error":{"code":..,"description":..}}; bodies of
// another shape keep only the status.
func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status, Code: http.StatusText(status)}
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				apiErr.Code, err = d.Str()
			case "description":
				apiErr.Description, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	})
	return apiErr
}
