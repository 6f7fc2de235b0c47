package wayback

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/ports"
)

// SaveClient dispatches "preserve this address" requests. The response body
// is never consumed; the endpoint gives no usable confirmation in this
// integration mode.
type SaveClient struct {
	endpoint string
	webURL   string
	apiKey   string
	client   *http.Client
}

var _ ports.Submitter = (*SaveClient)(nil)

// NewSaveClient builds a client for the save endpoint. The API key is
// optional; when set it is sent as a bearer credential.
func NewSaveClient(endpoint, webURL, apiKey string, client *http.Client) *SaveClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SaveClient{endpoint: endpoint, webURL: webURL, apiKey: apiKey, client: client}
}

// Submit fires the save request. Accepted only means the request left
// without a transport error; it is not proof of archiving.
func (c *SaveClient) Submit(ctx context.Context, address string) domain.SubmissionOutcome {
	outcome := domain.SubmissionOutcome{
		ManualURL: domain.ManualCheckURL(c.webURL, address),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+url.QueryEscape(address), nil)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		outcome.Err = err.Error()
		outcome.TimedOut = domain.IsTimeout(err)
		return outcome
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()

	outcome.Accepted = true
	return outcome
}
