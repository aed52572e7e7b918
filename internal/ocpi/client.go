package ocpi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 2 << 10

// RemoteError is raised for transport failures and non-2xx responses. It
// keeps enough of the exchange for diagnostics on the partner's side.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ocpi: %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("ocpi: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Result is a decoded OCPI response envelope plus the resolved pagination
// link, if the partner sent one.
type Result struct {
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`

	NextPage string `json:"-"`
}

// Bind unmarshals the envelope's data element into out.
func (r *Result) Bind(out any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("ocpi: empty data in response envelope")
	}
	return json.Unmarshal(r.Data, out)
}

type Client struct {
	HTTP *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// Do issues one authenticated call and decodes the OCPI envelope. Any
// transport failure or non-2xx status comes back as *RemoteError; the
// surrounding job decides whether that aborts or just marks the item.
func (c *Client) Do(ctx context.Context, method, url, token string, body any) (*Result, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ocpi: marshal %s %s body: %w", method, url, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &RemoteError{Method: method, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &RemoteError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Method: method, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: truncate(raw)}
	}

	res := &Result{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, res); err != nil {
			return nil, &RemoteError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: truncate(raw), Err: err}
		}
	}
	res.NextPage = nextPage(resp.Header.Get("Link"), url)
	return res, nil
}

// nextPage extracts the rel="next" target from a Link header. Returns ""
// when there is none, or when the partner echoes the current page back,
// which would otherwise loop pagination forever.
func nextPage(header, current string) string {
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		if len(fields) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(fields[0]), "<>")
		for _, attr := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(attr), "=")
			if !ok {
				continue
			}
			if strings.TrimSpace(k) == "rel" && strings.Trim(strings.TrimSpace(v), `"`) == "next" {
				if target == "" || target == current {
					return ""
				}
				return target
			}
		}
	}
	return ""
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
