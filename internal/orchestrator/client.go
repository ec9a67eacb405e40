// Package orchestrator hosts the placement controller: a REST client of
// the emulator control plane, usage diffing against the previous
// observation, user resolution from the event log, and the loop that
// migrates applications toward the users generating their traffic.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// Client calls the emulator control-plane API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s failed: status=%d body=%s", path, resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(b))
	}
	return nil
}

// DataCenters fetches the edge data center list.
func (c *Client) DataCenters(ctx context.Context) ([]edge.DataCenterInfo, error) {
	var out []edge.DataCenterInfo
	if err := c.getJSON(ctx, "/network/edge_data_centers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Applications fetches the applications hosted on one data center, access
// logs included.
func (c *Client) Applications(ctx context.Context, edcID uint32) ([]edge.Application, error) {
	var out []edge.Application
	path := fmt.Sprintf("/network/edge_data_centers/%d/applications", edcID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddApplication hosts appID on the data center edcID.
func (c *Client) AddApplication(ctx context.Context, edcID, appID uint32) error {
	path := fmt.Sprintf("/network/edge_data_centers/%d/applications/%d", edcID, appID)
	return c.send(ctx, http.MethodPost, path)
}

// RemoveApplication drops appID from the data center edcID.
func (c *Client) RemoveApplication(ctx context.Context, edcID, appID uint32) error {
	path := fmt.Sprintf("/network/edge_data_centers/%d/applications/%d", edcID, appID)
	return c.send(ctx, http.MethodDelete, path)
}

// TotalUses fetches the access count of one hosted application.
func (c *Client) TotalUses(ctx context.Context, edcID, appID uint32) (uint32, error) {
	var out uint32
	path := fmt.Sprintf("/network/edge_data_centers/%d/applications/%d/total_usages", edcID, appID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// ConnectedUsers fetches the sessions currently holding an ip.
func (c *Client) ConnectedUsers(ctx context.Context) ([]mobilenet.PDUSessionInfo, error) {
	var out []mobilenet.PDUSessionInfo
	if err := c.getJSON(ctx, "/mobile_network/connected_users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WaitForDataCenters polls the data center list until the emulator answers,
// retrying at a constant interval. It gives up after maxRetries additional
// attempts or when the context is done.
func (c *Client) WaitForDataCenters(ctx context.Context, log *slog.Logger, interval time.Duration, maxRetries uint64) ([]edge.DataCenterInfo, error) {
	var dcs []edge.DataCenterInfo
	op := func() error {
		var err error
		dcs, err = c.DataCenters(ctx)
		if err != nil {
			log.Warn("emulator not reachable yet", "url", c.BaseURL, "error", err)
			return err
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("fetch edge data centers: %w", err)
	}
	return dcs, nil
}
