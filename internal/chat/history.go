package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpTimeout = 5 * time.Second

// historyClient performs the one-shot backfill fetch for a room. It runs
// exactly once per session and is never retried.
type historyClient struct {
	url        string
	httpClient *http.Client
}

func newHistoryClient(url string, client *http.Client) *historyClient {
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	return &historyClient{url: url, httpClient: client}
}

// load fetches the room's prior messages. A 404 means the room has no
// history yet and is treated as success with an empty backfill; any other
// non-2xx response is a failure carrying the status and a body excerpt.
func (c *historyClient) load(ctx context.Context) ([]Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("history fetch: server returned %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("history decode: %w", err)
	}
	return messages, nil
}

// readErrorBody pulls a short excerpt out of an error response so failures
// stay diagnosable without dumping arbitrary payloads into logs.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}
