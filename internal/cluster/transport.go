package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"durakv/internal/log"
)

// Peer identifies one other member of the fixed, in-code cluster topology.
// node-id is a small unique integer — higher wins ties in leader election.
type Peer struct {
	ID      int
	Address string // host:port
}

var httpClient = &http.Client{}

// postJSON marshals body, POSTs it to url, and decodes the response into
// out (when out is non-nil). Context carries the per-call timeout — every
// caller in this package sets one explicitly per §4.6/§4.7's bounded
// timeouts.
func postJSON(ctx context.Context, url string, body, out any) error {
	return doJSON(ctx, http.MethodPost, url, body, out)
}

// doJSON is postJSON generalized over the HTTP method, used by forward()
// so a forwarded GET/DELETE reaches the leader as the same verb the client
// used rather than always as a POST.
func doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A 404 body is decoded like a success so a forwarded get/delete of an
	// absent key reaches the caller as success=false rather than an error.
	if resp.StatusCode == http.StatusNotFound && out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer returned HTTP %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// fireAndForget posts body to every peer's path with the given per-call
// timeout, swallowing every error — replication and election broadcasts
// are best-effort by design (§4.6, §4.7: "PeerUnreachable... logged and
// swallowed; never fails the client request").
func fireAndForget(peers []Peer, path string, body any, timeout time.Duration, component string) {
	for _, p := range peers {
		go func(p Peer) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			url := fmt.Sprintf("http://%s%s", p.Address, path)
			if err := postJSON(ctx, url, body, nil); err != nil {
				log.Component(component).Debug().Int("peer_id", p.ID).Err(err).Msg("peer unreachable")
			}
		}(p)
	}
}

// sendWithRetry posts body to one peer with exponential backoff, used
// where a caller needs to know whether at least one attempt landed (the
// Bully election's "did a higher peer answer" probe). Unlike
// fireAndForget this blocks and returns the outcome.
func sendWithRetry(ctx context.Context, peer Peer, path string, body, out any, maxAttempts int) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))*100) * time.Millisecond
			time.Sleep(delay)
		}
		url := fmt.Sprintf("http://%s%s", peer.Address, path)
		if err := postJSON(ctx, url, body, out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}
