// Package client is a Go client for the MovieFlix JSON API.  It keeps the
// bearer token of the current session and surfaces every non-2xx response
// as an *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/movieflix/internal/model"
)

// DefaultBaseURL is used when New is given an empty base URL.
const DefaultBaseURL = "http://localhost:8080"

// ErrNoSession is returned by calls that need a token when none is set.
var ErrNoSession = errors.New("client: not signed in")

// FieldError mirrors one entry of the details array of a 400 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response.  Message is the server's error text, or
// the status text when the body carried none.
type APIError struct {
	Status  int
	Message string
	Details []FieldError
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.Message
	}
	return fmt.Sprintf("%d: %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// User is the public profile returned by the auth endpoints.
type User struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the result of sign-in and refresh.
type Session struct {
	User             User      `json:"user"`
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// EntryInput is the body of create and update.  Nil optional fields are
// sent as absent and stored as null.
type EntryInput struct {
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Genre       string   `json:"genre"`
	ReleaseYear int      `json:"releaseYear"`
	Rating      float64  `json:"rating"`
	Description string   `json:"description"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	Director    string   `json:"director"`
	Budget      *float64 `json:"budget,omitempty"`
	Duration    int      `json:"duration"`
	Location    *string  `json:"location,omitempty"`
}

// InputFrom copies the editable fields of e.
func InputFrom(e model.Entry) EntryInput {
	return EntryInput{
		Title:       e.Title,
		Type:        string(e.Type),
		Genre:       e.Genre,
		ReleaseYear: e.ReleaseYear,
		Rating:      e.Rating,
		Description: e.Description,
		ImageURL:    e.ImageURL,
		Director:    e.Director,
		Budget:      e.Budget,
		Duration:    e.Duration,
		Location:    e.Location,
	}
}

// Page is one page of the entry list.
type Page struct {
	Data  []model.Entry `json:"data"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// Client talks to one API server.  It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a Client for baseURL.  A nil httpClient gets a 15s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// BaseURL returns the server the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SignUp creates an account.  It does not sign in.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-up", body, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// SignIn exchanges credentials for a session and keeps its token.
func (c *Client) SignIn(ctx context.Context, email, password string, rememberMe bool) (*Session, error) {
	var out Session
	body := map[string]interface{}{"email": email, "password": password, "rememberMe": rememberMe}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-in", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Refresh rotates refreshToken into a new session and keeps its token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// SignOut ends the session.  A non-empty refreshToken revokes only that
// token; otherwise all of the user's refresh tokens are revoked.
func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	if c.Token() == "" {
		return ErrNoSession
	}
	var body interface{}
	if refreshToken != "" {
		body = map[string]string{"refreshToken": refreshToken}
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-out", body, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Session returns the signed-in user.
func (c *Client) Session(ctx context.Context) (*User, error) {
	if c.Token() == "" {
		return nil, ErrNoSession
	}
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListEntries fetches one page of the caller's entries, newest first.
func (c *Client) ListEntries(ctx context.Context, page, limit int) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out Page
	if err := c.do(ctx, http.MethodGet, "/api/entries?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEntry fetches one entry.
func (c *Client) GetEntry(ctx context.Context, id uint64) (*model.Entry, error) {
	return c.entry(ctx, http.MethodGet, entryPath(id), nil)
}

// CreateEntry adds an entry and returns it as stored.
func (c *Client) CreateEntry(ctx context.Context, in EntryInput) (*model.Entry, error) {
	return c.entry(ctx, http.MethodPost, "/api/entries", in)
}

// UpdateEntry replaces the editable fields of an entry.
func (c *Client) UpdateEntry(ctx context.Context, id uint64, in EntryInput) (*model.Entry, error) {
	return c.entry(ctx, http.MethodPut, entryPath(id), in)
}

// DeleteEntry removes an entry and returns what was removed.
func (c *Client) DeleteEntry(ctx context.Context, id uint64) (*model.Entry, error) {
	return c.entry(ctx, http.MethodDelete, entryPath(id), nil)
}

func entryPath(id uint64) string {
	return "/api/entries/" + strconv.FormatUint(id, 10)
}

func (c *Client) entry(ctx context.Context, method, path string, body interface{}) (*model.Entry, error) {
	var out struct {
		Data model.Entry `json:"data"`
	}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// do sends one request.  body is JSON encoded when non-nil; out is decoded
// from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) *APIError {
	var body struct {
		Error   string       `json:"error"`
		Message string       `json:"message"`
		Details []FieldError `json:"details"`
	}
	ae := &APIError{Status: status}
	if err := json.Unmarshal(data, &body); err == nil {
		ae.Message = body.Error
		// rate limit responses put the human text in message
		if body.Message != "" && (ae.Message == "" || strings.Contains(ae.Message, "_")) {
			ae.Message = body.Message
		}
		ae.Details = body.Details
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(status)
	}
	return ae
}
