package renewal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RenewalPath is the meta tier endpoint that accepts heartbeats.
const RenewalPath = "/api/v1/renewal"

// HTTPExchanger sends heartbeats to the meta tier over HTTP JSON. It walks
// the configured endpoints round-robin and sticks with the first one that
// answers.
type HTTPExchanger struct {
	endpoints []string
	client    *http.Client

	mu  sync.Mutex
	cur int
}

func NewHTTPExchanger(endpoints []string) *HTTPExchanger {
	return &HTTPExchanger{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *HTTPExchanger) Exchange(ctx context.Context, req HeartbeatRequest) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	if len(e.endpoints) == 0 {
		return resp, fmt.Errorf("no meta endpoints configured")
	}

	var lastErr error
	for i := 0; i < len(e.endpoints); i++ {
		url := e.pick() + RenewalPath
		if err := e.postJSON(ctx, url, req, &resp); err != nil {
			lastErr = err
			e.advance()
			continue
		}
		return resp, nil
	}
	return resp, fmt.Errorf("all meta endpoints failed: %w", lastErr)
}

func (e *HTTPExchanger) pick() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endpoints[e.cur]
}

func (e *HTTPExchanger) advance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cur = (e.cur + 1) % len(e.endpoints)
}

func (e *HTTPExchanger) postJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
