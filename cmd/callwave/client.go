package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"callwave/internal/api"
)

// ErrDaemonUnavailable marks connection failures so callers can suggest
// starting the daemon.
var ErrDaemonUnavailable = errors.New("callwave daemon unavailable")

// Client talks to the daemon's HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for the given bind address or base URL.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("daemon address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		http: &http.Client{},
	}, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var payload api.DaemonStatus
	err := c.get(ctx, "/api/status", nil, &payload)
	return payload, err
}

// Calls lists call views, optionally filtered by state.
func (c *Client) Calls(ctx context.Context, states []string, limit int) ([]api.CallView, error) {
	values := url.Values{}
	for _, state := range states {
		if trimmed := strings.TrimSpace(state); trimmed != "" {
			values.Add("state", trimmed)
		}
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var payload api.CallListResponse
	if err := c.get(ctx, "/api/calls", values, &payload); err != nil {
		return nil, err
	}
	return payload.Calls, nil
}

// Call fetches a single call view.
func (c *Client) Call(ctx context.Context, callID string) (api.CallView, error) {
	var payload api.CallResponse
	err := c.get(ctx, "/api/calls/"+url.PathEscape(callID), nil, &payload)
	return payload.Call, err
}

// Complete signals end of stream for a call.
func (c *Client) Complete(ctx context.Context, callID string, failed bool, reason string) (api.CallView, error) {
	var payload api.CallResponse
	err := c.post(ctx, "/api/calls/"+url.PathEscape(callID)+"/complete",
		api.CompleteRequest{Failed: failed, Reason: reason}, &payload)
	return payload.Call, err
}

// Archive moves a settled call into the terminal archive.
func (c *Client) Archive(ctx context.Context, callID string) (api.CallView, error) {
	var payload api.CallResponse
	err := c.post(ctx, "/api/calls/"+url.PathEscape(callID)+"/archive", struct{}{}, &payload)
	return payload.Call, err
}

// SendPacket ingests one packet, mainly for smoke-testing a deployment.
func (c *Client) SendPacket(ctx context.Context, callID string, req api.PacketRequest) (api.PacketResponse, error) {
	var payload api.PacketResponse
	err := c.post(ctx, "/api/calls/"+url.PathEscape(callID)+"/packets", req, &payload)
	return payload, err
}

func (c *Client) get(ctx context.Context, path string, values url.Values, dst any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, dst)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			if apiErr.Detail != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Detail)
			}
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
