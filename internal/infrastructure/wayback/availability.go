package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/ports"
)

// AvailabilityClient queries the "most recent snapshot" endpoint.
type AvailabilityClient struct {
	endpoint string
	client   *http.Client
}

var _ ports.CaptureSource = (*AvailabilityClient)(nil)

// NewAvailabilityClient builds a client for the availability endpoint.
func NewAvailabilityClient(endpoint string, client *http.Client) *AvailabilityClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &AvailabilityClient{endpoint: endpoint, client: client}
}

type availabilityResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Latest returns the most recent snapshot of the address, or nil when the
// service reports none.
func (c *AvailabilityClient) Latest(ctx context.Context, address string) (*domain.Snapshot, error) {
	return c.lookup(ctx, address, "")
}

// LatestNear is the timestamp-hinted variant; the service biases its answer
// toward captures close to the given 14-digit timestamp.
func (c *AvailabilityClient) LatestNear(ctx context.Context, address, timestamp string) (*domain.Snapshot, error) {
	return c.lookup(ctx, address, timestamp)
}

func (c *AvailabilityClient) lookup(ctx context.Context, address, timestamp string) (*domain.Snapshot, error) {
	query := url.Values{}
	query.Set("url", address)
	if timestamp != "" {
		query.Set("timestamp", timestamp)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("availability lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("availability endpoint returned %s", resp.Status)
	}

	var parsed availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode availability response: %w", err)
	}

	closest := parsed.ArchivedSnapshots.Closest
	if !closest.Available || closest.URL == "" {
		return nil, nil
	}

	return &domain.Snapshot{URL: closest.URL, Timestamp: closest.Timestamp}, nil
}

// RecentBiased wraps an AvailabilityClient into a capture source that hints
// the lookup toward the current moment. The plain endpoint is known to lag
// for just-created snapshots.
type RecentBiased struct {
	client *AvailabilityClient
	now    func() time.Time
}

var _ ports.CaptureSource = (*RecentBiased)(nil)

// NewRecentBiased builds the timestamp-hinted secondary source.
func NewRecentBiased(client *AvailabilityClient) *RecentBiased {
	return &RecentBiased{client: client, now: time.Now}
}

// Latest asks for the snapshot closest to now.
func (r *RecentBiased) Latest(ctx context.Context, address string) (*domain.Snapshot, error) {
	hint := r.now().UTC().Format("20060102150405")
	return r.client.LatestNear(ctx, address, hint)
}
