package channel

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Stream is an open push connection for one block.
type Stream interface {
	Next() (Event, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, matchID, blockID int64) (Stream, error)
}

func EventsPath(matchID, blockID int64) string {
	return fmt.Sprintf("/matches/%d/blocks/%d/seats/events", matchID, blockID)
}

// HTTPDialer opens server-sent event streams over HTTP. The client must not
// carry a Timeout because streams are long lived; use ctx to bound dialing.
type HTTPDialer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDialer(baseURL string, client *http.Client) *HTTPDialer {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPDialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (d *HTTPDialer) Dial(ctx context.Context, matchID, blockID int64) (Stream, error) {
	url := d.baseURL + EventsPath(matchID, blockID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build event stream request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("event stream returned content type %q", resp.Header.Get("Content-Type"))
	}

	return &httpStream{
		body:   resp.Body,
		reader: newEventReader(resp.Body),
	}, nil
}

type httpStream struct {
	body   io.ReadCloser
	reader *eventReader
}

func (s *httpStream) Next() (Event, error) {
	return s.reader.Next()
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
