package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// Client talks to a running Server.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient creates a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Transport: transport},
	}
}

// WithToken sets the bearer token sent with commands.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Command posts a command line and returns the reply chunks.
func (c *Client) Command(ctx context.Context, line string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/command", strings.NewReader(line))
	if err != nil {
		return nil, errors.Wrap(err, "build command request")
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post command")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("command rejected: %s", resp.Status)
	}

	var body commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode command response")
	}
	return body.Messages, nil
}

// Watch streams transactions to fn until ctx is cancelled or the server closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(domain.Transaction)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/transactions/stream", nil)
	if err != nil {
		return errors.Wrap(err, "build stream request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "open transaction stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream rejected: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &tx); err != nil {
			return errors.Wrap(err, "decode transaction event")
		}
		fn(tx)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "read transaction stream")
	}
	return nil
}
