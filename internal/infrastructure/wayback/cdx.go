package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/ports"
)

// CDXClient queries the columnar capture index. It serves the history
// fallback, independent of the availability endpoint the verification loop
// relies on.
type CDXClient struct {
	endpoint string
	client   *http.Client
}

var _ ports.HistorySource = (*CDXClient)(nil)

// NewCDXClient builds a client for the CDX search endpoint.
func NewCDXClient(endpoint string, client *http.Client) *CDXClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &CDXClient{endpoint: endpoint, client: client}
}

// RecentCaptures returns up to limit captures of the address, newest first.
// Rows with non-success status codes are skipped.
func (c *CDXClient) RecentCaptures(ctx context.Context, address string, limit int) ([]domain.Capture, error) {
	if limit <= 0 {
		limit = 5
	}

	query := url.Values{}
	query.Set("url", address)
	query.Set("output", "json")
	query.Set("fl", "timestamp,original,statuscode")
	query.Set("limit", strconv.Itoa(-limit))
	query.Set("fastLatest", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdx lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdx endpoint returned %s", resp.Status)
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode cdx response: %w", err)
	}

	// First row is the column header; data rows are oldest first with a
	// negative limit, so walk them backwards.
	var captures []domain.Capture
	for i := len(rows) - 1; i >= 1; i-- {
		row := rows[i]
		if len(row) < 3 {
			continue
		}
		if !usableStatus(row[2]) {
			continue
		}
		captures = append(captures, domain.Capture{
			Timestamp:  row[0],
			Original:   row[1],
			StatusCode: row[2],
		})
	}

	return captures, nil
}

func usableStatus(code string) bool {
	// The index reports "-" for captures recorded without a status.
	if code == "-" {
		return true
	}
	return strings.HasPrefix(code, "2") || strings.HasPrefix(code, "3")
}
