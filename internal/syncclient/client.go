// Package syncclient exchanges reading positions with a sync server.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/logger"
	"github.com/yuanying/epub-reader/internal/settings"
)

// ErrNotConfigured is matched by SyncErrors raised before any request
// because the server address or the user id is missing.
var ErrNotConfigured = errors.New("sync: server address or user id not configured")

// SyncError reports a failed exchange. Local state is untouched.
type SyncError struct {
	Op     string
	Reason string
	Err    error
}

func (e *SyncError) Error() string {
	msg := "sync " + e.Op + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() error { return e.Err }

// BookStore is the local collection seen by the client.
type BookStore interface {
	GetAll(ctx context.Context) ([]domain.Item, error)
	Put(ctx context.Context, key string, rec domain.BookRecord) error
}

// Result lists the titles sent to and taken from the server.
type Result struct {
	Uploaded   []string
	Downloaded []string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to one sync server on behalf of one user.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	store   BookStore
	server  string
	uuid    string
	logger  *slog.Logger
}

// New returns a client for the server and user configured in prefs.
func New(store BookStore, prefs settings.Settings, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		store:   store,
		server:  strings.TrimRight(prefs.ServerAddress, "/"),
		uuid:    prefs.UUID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrDiscard(c.logger)
	return c
}

// Sync uploads every local book and applies the newer server copies.
func (c *Client) Sync(ctx context.Context) (*Result, error) {
	if c.server == "" || c.uuid == "" {
		return nil, &SyncError{Op: "sync", Reason: "not configured", Err: ErrNotConfigured}
	}

	items, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local books: %w", err)
	}

	req := domain.SyncRequest{UserUUID: c.uuid, Data: make([]domain.SyncBook, 0, len(items))}
	for i, it := range items {
		b := it.Value.ToSync()
		b.ID = i
		req.Data = append(req.Data, b)
	}

	var resp domain.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/user/sync", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &SyncError{Op: "sync", Reason: resp.Error}
	}

	updates := Merge(items, resp.UpdatedBooks)
	res := &Result{Uploaded: resp.ServerUpdates}
	for _, u := range updates {
		if err := c.store.Put(ctx, u.Key, u.Value); err != nil {
			return res, fmt.Errorf("failed to save synced book %s: %w", u.Key, err)
		}
		res.Downloaded = append(res.Downloaded, u.Value.Title)
	}

	c.logger.Info("sync finished",
		"uploaded", len(res.Uploaded),
		"downloaded", len(res.Downloaded))
	return res, nil
}

// Merge returns the local items to overwrite with server copies. A server
// book replaces the reading state of the local book with the same title
// only when its timestamp is strictly newer, so merging the same response
// twice changes nothing the second time.
func Merge(local []domain.Item, server []domain.SyncBook) []domain.Item {
	byTitle := make(map[string]int, len(local))
	for i, it := range local {
		byTitle[it.Value.Title] = i
	}

	var out []domain.Item
	for _, sb := range server {
		i, ok := byTitle[sb.Title]
		if !ok {
			continue
		}
		it := local[i]
		if sb.UpdatedAt <= it.Value.UpdatedAt {
			continue
		}
		it.Value.LastReadIndex = sb.LastReadIndex
		it.Value.TotalIndex = sb.TotalIndex
		it.Value.UpdatedAt = sb.UpdatedAt
		local[i] = it
		out = append(out, it)
	}
	return out
}

// Generate asks the server for a new user id.
func (c *Client) Generate(ctx context.Context) (string, error) {
	if c.server == "" {
		return "", &SyncError{Op: "generate", Reason: "not configured", Err: ErrNotConfigured}
	}
	var resp domain.GenerateResponse
	if err := c.do(ctx, http.MethodGet, "/user/generate", nil, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Data == "" {
		return "", &SyncError{Op: "generate", Reason: resp.Error}
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	op := strings.TrimPrefix(path, "/user/")
	if err := c.limiter.Wait(ctx); err != nil {
		return &SyncError{Op: op, Reason: "rate limit wait", Err: err}
	}

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, r)
	if err != nil {
		return &SyncError{Op: op, Reason: "invalid request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &SyncError{Op: op, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &SyncError{Op: op, Reason: "failed to read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SyncError{Op: op, Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &SyncError{Op: op, Reason: "invalid response", Err: err}
	}
	return nil
}
