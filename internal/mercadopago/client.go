package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"venue-booking-backend/internal/config"
)

// ErrPaymentNotFound is the translated processor-side 404. Callers report it
// as a pending/not-yet-settled outcome, never as a hard failure.
var ErrPaymentNotFound = errors.New("payment not found in processor")

// timestampLayout is the timezone-aware absolute format the search endpoint
// accepts. Naive local time is rejected for begin/end dates.
const timestampLayout = "2006-01-02T15:04:05.000-07:00"

const defaultSearchLimit = 1000

type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

func NewClient() *Client {
	baseURL := strings.TrimSpace(os.Getenv("MP_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	timeout := 15 * time.Second
	if v := strings.TrimSpace(os.Getenv("MP_HTTP_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  config.GetLogger(),
	}
}

// NewClientWithBaseURL is for tests against a local server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// GetPayment fetches one transaction by processor id under the given tenant
// credential.
func (c *Client) GetPayment(ctx context.Context, accessToken string, paymentID string) (*Payment, error) {
	body, status, err := c.get(ctx, accessToken, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("mercadopago api error %d: %s", status, strings.TrimSpace(string(body)))
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, err
	}
	payment.Raw = body
	return &payment, nil
}

type SearchParams struct {
	Begin    time.Time
	End      time.Time
	SortDesc bool
	Limit    int
	Offset   int
}

// SearchPayments queries the time-bounded search endpoint. One page only;
// pagination beyond the first page is the caller's responsibility. Logs when
// the result count equals the page limit since the window may be truncated.
func (c *Client) SearchPayments(ctx context.Context, accessToken string, p SearchParams) ([]Payment, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	criteria := "desc"
	if !p.SortDesc {
		criteria = "asc"
	}

	params := url.Values{}
	params.Set("sort", "date_created")
	params.Set("criteria", criteria)
	params.Set("range", "date_created")
	params.Set("begin_date", p.Begin.Format(timestampLayout))
	params.Set("end_date", p.End.Format(timestampLayout))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(p.Offset))

	body, status, err := c.get(ctx, accessToken, "/v1/payments/search", params)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("mercadopago api error %d: %s", status, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	payments := make([]Payment, 0, len(parsed.Results))
	for _, raw := range parsed.Results {
		var payment Payment
		if err := json.Unmarshal(raw, &payment); err != nil {
			c.logger.WithFields(logrus.Fields{
				"module": "mercadopago",
				"error":  err.Error(),
			}).Warn("skipping unparseable payment in search results")
			continue
		}
		payment.Raw = raw
		payments = append(payments, payment)
	}

	if len(payments) == limit {
		c.logger.WithFields(logrus.Fields{
			"module": "mercadopago",
			"limit":  limit,
			"begin":  p.Begin.Format(timestampLayout),
			"end":    p.End.Format(timestampLayout),
		}).Warn("search result count equals page limit; window may be truncated")
	}
	return payments, nil
}

func (c *Client) get(ctx context.Context, accessToken string, path string, params url.Values) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
