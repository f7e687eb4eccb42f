package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cartographer/internal/api"
	"cartographer/internal/progress"
	"cartographer/internal/services"
)

// StreamPath is the daemon route that runs a job and streams its events.
const StreamPath = "/api/v1/extraction/stream"

// ErrIncompleteStream is reported when the stream closes before a terminal
// event while the run was not cancelled.
var ErrIncompleteStream = errors.New("stream ended before a terminal event")

// Client submits jobs to the daemon and folds the streamed events.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient targets the daemon at bind ("127.0.0.1:7488" or a full URL).
// token is sent as a bearer token when non-empty.
func NewClient(bind, token string) (*Client, error) {
	base, err := ParseAddress(bind)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: a stream lasts as long as the job. Callers cancel via ctx
		// or Machine.Cancel.
		http: &http.Client{},
	}, nil
}

// ParseAddress turns a bind address or URL into the daemon's base URL.
func ParseAddress(bind string) (*url.URL, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("consumer: daemon address required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("consumer: parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return base, nil
}

// Stream submits req and folds every event into m, calling onView after each
// transition. It returns the final view. Machine.Cancel (or cancelling ctx)
// closes the connection, which the daemon treats as cancelling the job; the
// view is then StateCancelled and the error nil.
//
// A frame that cannot be decoded is a hard error: the view moves to
// StateError and the *progress.MalformedFrameError is returned.
func (c *Client) Stream(ctx context.Context, req api.ExtractionRequest, m *Machine, onView func(View)) (View, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	notify := func(v View) View {
		if onView != nil {
			onView(v)
		}
		return v
	}
	m.Begin(cancel)

	body, err := json.Marshal(req)
	if err != nil {
		return notify(m.Fail(err)), fmt.Errorf("encode request: %w", err)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: StreamPath})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return notify(m.Fail(err)), err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return notify(m.Cancel()), nil
		}
		return notify(m.Fail(err)), err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := DecodeError(resp)
		return notify(m.Fail(err)), err
	}

	dec := progress.NewDecoder(resp.Body)
	for {
		evt, err := dec.Next()
		if err != nil {
			if view := m.Snapshot(); view.State.Terminal() {
				return notify(view), nil
			}
			var malformed *progress.MalformedFrameError
			switch {
			case errors.As(err, &malformed):
				return notify(m.Fail(err)), err
			case errors.Is(err, io.EOF):
				return notify(m.Fail(ErrIncompleteStream)), ErrIncompleteStream
			case ctx.Err() != nil:
				return notify(m.Cancel()), nil
			default:
				return notify(m.Fail(err)), fmt.Errorf("read stream: %w", err)
			}
		}
		view := notify(m.Fold(evt))
		if view.State.Terminal() {
			return view, nil
		}
	}
}

// DecodeError turns a JSON error response into an error that classifies as
// the kind the daemon reported.
func DecodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload api.ErrorResponse
	message := strings.TrimSpace(string(data))
	kind := services.KindUnclassified
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		message = payload.Error
		kind = services.Kind(payload.Kind)
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	message = fmt.Sprintf("daemon returned status %d: %s", resp.StatusCode, message)
	if marker := services.Marker(kind); marker != nil {
		return fmt.Errorf("%w: %s", marker, message)
	}
	return errors.New(message)
}
