// Package identity talks to the Supabase GoTrue auth API. The service gates
// reader access on accounts managed there; this client covers only the three
// calls the gateway needs (admin user creation, password sign-in, and access
// token resolution) and translates the API's stringly-typed failures into a
// closed set of sentinel errors at this boundary.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrUserExists indicates an account already exists for the email.
	ErrUserExists = errors.New("identity: user already exists")
	// ErrInvalidToken indicates the access token was rejected or resolved to no user.
	ErrInvalidToken = errors.New("identity: invalid access token")
	// ErrInvalidCredentials indicates a failed password sign-in.
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
)

// GoTrue reports "duplicate user" only through its error message, so the
// classification is a pattern match, kept here so callers only ever see
// ErrUserExists.
var existingUserPattern = regexp.MustCompile(`(?i)already (?:registered|exists|been registered)|user already`)

const maxErrorBody = 4096

// Client is a minimal GoTrue API client authenticated with a service-role key.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates an identity client for the given Supabase project URL.
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

type apiError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// CreateUser provisions a pre-confirmed account. Payment already proved the
// purchase, so no confirmation email round-trip is required.
func (c *Client) CreateUser(ctx context.Context, email, password string) error {
	body, err := json.Marshal(createUserRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
	})
	if err != nil {
		return fmt.Errorf("marshal create user request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", c.serviceKey, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := readAPIError(resp.Body)
	if existingUserPattern.MatchString(msg) {
		return ErrUserExists
	}
	return fmt.Errorf("identity: create user failed (HTTP %d): %s", resp.StatusCode, msg)
}

type userResponse struct {
	Email string `json:"email"`
}

// ResolveToken resolves a bearer access token to the account's email.
func (c *Client) ResolveToken(ctx context.Context, token string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return "", ErrInvalidToken
	default:
		return "", fmt.Errorf("identity: resolve token failed (HTTP %d): %s", resp.StatusCode, readAPIError(resp.Body))
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&user); err != nil {
		return "", fmt.Errorf("identity: decode user response: %w", err)
	}
	if strings.TrimSpace(user.Email) == "" {
		return "", ErrInvalidToken
	}
	return user.Email, nil
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the result of a successful password sign-in.
type Session struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// SignInWithPassword exchanges credentials for an access token.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(passwordGrantRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal password grant request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", c.serviceKey, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("identity: sign in failed (HTTP %d): %s", resp.StatusCode, readAPIError(resp.Body))
	}

	var session Session
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&session); err != nil {
		return nil, fmt.Errorf("identity: decode session response: %w", err)
	}
	if strings.TrimSpace(session.AccessToken) == "" {
		return nil, ErrInvalidCredentials
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create identity request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	return resp, nil
}

func readAPIError(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)
	if msg := apiErr.text(); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(raw))
}
