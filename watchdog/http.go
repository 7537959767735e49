package watchdog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/MrEthical07/rolegate/session"
)

// ReissueHeader carries a re-signed session token on status responses.
const ReissueHeader = "X-Session-Token"

// HTTPPoller polls a session status endpoint with a bearer token. A token
// reissued by the server replaces the current one.
type HTTPPoller struct {
	client *http.Client
	url    string

	mu    sync.Mutex
	token string
}

// NewHTTPPoller returns a poller for url. A nil client uses
// http.DefaultClient.
func NewHTTPPoller(client *http.Client, url, token string) *HTTPPoller {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPoller{client: client, url: url, token: token}
}

// Token returns the token sent on the next poll.
func (p *HTTPPoller) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Poll fetches the session status. A 401 reply is reported as
// session.StatusUnauthenticated; any other non-200 reply is an error.
func (p *HTTPPoller) Poll(ctx context.Context) (session.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", err
	}
	if token := p.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return session.StatusUnauthenticated, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("session status: unexpected http %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return "", fmt.Errorf("session status: decode: %w", err)
	}
	status, ok := session.ParseStatus(body.Status)
	if !ok {
		return "", fmt.Errorf("session status: unknown value %q", body.Status)
	}

	if reissued := resp.Header.Get(ReissueHeader); reissued != "" {
		p.mu.Lock()
		p.token = reissued
		p.mu.Unlock()
	}
	return status, nil
}
