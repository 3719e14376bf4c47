// Package client talks to the bookmark API and keeps a live, reconciled
// view of the signed-in user's bookmarks.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"folios/internal/models"
)

const feedBuffer = 64

// API is the subset of the HTTP surface a Session depends on.
type API interface {
	ListBookmarks(ctx context.Context) ([]models.Bookmark, error)
	CreateBookmark(ctx context.Context, input models.AddBookmarkRequestBody) (*models.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
	Me(ctx context.Context) (*models.Profile, error)
	// Subscribe returns once the server has acknowledged the subscription.
	// The channel is closed when the stream ends or ctx is done.
	Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client. It must not set a Timeout,
// which would cut change feed streams short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListBookmarks(ctx context.Context) ([]models.Bookmark, error) {
	var resp models.BookmarksResponse
	if err := c.do(ctx, http.MethodGet, "/api/bookmarks", nil, &resp, "list bookmarks"); err != nil {
		return nil, err
	}
	if resp.Bookmarks == nil {
		resp.Bookmarks = []models.Bookmark{}
	}
	return resp.Bookmarks, nil
}

func (c *Client) CreateBookmark(ctx context.Context, input models.AddBookmarkRequestBody) (*models.Bookmark, error) {
	var resp models.BookmarkResponse
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", input, &resp, "create bookmark"); err != nil {
		return nil, err
	}
	if resp.Bookmark == nil {
		return nil, &models.StorageError{Op: "create bookmark", Err: errors.New("response carried no bookmark")}
	}
	return resp.Bookmark, nil
}

func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	var resp models.DeleteResponse
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(id), nil, &resp, "delete bookmark")
}

func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &profile, "fetch profile"); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/bookmarks/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open change feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(resp, "subscribe")
	}

	stream := newEventStream(resp.Body)
	if err := stream.awaitReady(); err != nil {
		resp.Body.Close()
		return nil, err
	}

	events := make(chan models.ChangeEvent, feedBuffer)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		stream.pump(ctx, events)
	}()
	return events, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, op string) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	log.Debug().Str("method", method).Str("path", path).Msg("Calling bookmark API")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp, op)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// responseError turns a non-2xx response into the shared error taxonomy.
func responseError(resp *http.Response, op string) error {
	var body models.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return models.ErrUnauthenticated
	case http.StatusBadRequest:
		msg := body.Error
		if body.Field != "" {
			msg = strings.TrimPrefix(msg, body.Field+": ")
		}
		return &models.InvalidInputError{Field: body.Field, Message: msg}
	default:
		msg := body.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &models.StorageError{Op: op, Err: fmt.Errorf("server responded %d: %s", resp.StatusCode, msg)}
	}
}

// eventStream parses a text/event-stream body frame by frame.
type eventStream struct {
	scanner *bufio.Scanner
}

type frame struct {
	event string
	data  string
}

func newEventStream(r io.Reader) *eventStream {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return &eventStream{scanner: s}
}

// next returns the next dispatched frame, skipping comments.
func (s *eventStream) next() (frame, error) {
	var (
		f    frame
		data []string
		seen bool
	)
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if !seen {
				continue
			}
			f.data = strings.Join(data, "\n")
			if f.event == "" {
				f.event = "message"
			}
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}
	if err := s.scanner.Err(); err != nil {
		return frame{}, err
	}
	return frame{}, io.EOF
}

func (s *eventStream) awaitReady() error {
	for {
		f, err := s.next()
		if err != nil {
			return fmt.Errorf("change feed closed before it was ready: %w", err)
		}
		if f.event == "ready" {
			return nil
		}
	}
}

func (s *eventStream) pump(ctx context.Context, events chan<- models.ChangeEvent) {
	for {
		f, err := s.next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Msg("Change feed stream failed")
			}
			return
		}

		kind := models.ChangeKind(f.event)
		if kind != models.ChangeInsert && kind != models.ChangeDelete {
			continue
		}
		var bm models.Bookmark
		if err := json.Unmarshal([]byte(f.data), &bm); err != nil {
			log.Warn().Err(err).Str("event", f.event).Msg("Discarding malformed change event")
			continue
		}

		select {
		case events <- models.ChangeEvent{Kind: kind, Bookmark: bm}:
		case <-ctx.Done():
			return
		}
	}
}
