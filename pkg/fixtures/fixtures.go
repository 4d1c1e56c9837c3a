// Package fixtures prepares and cleans up backend state for test runs: the
// stored test user, carts, and accounts created by registration scenarios.
package fixtures

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ErrUserExists is returned by Register when the backend already knows the
// username.
var ErrUserExists = errors.New("user already exists")

// Client talks to the storefront backend API.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Register creates an account through POST /register.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	status, data, err := c.do(ctx, http.MethodPost, "/register", body)
	if err != nil {
		return err
	}
	msg := gjson.GetBytes(data, "message").String()
	switch {
	case status == http.StatusOK:
		c.log.WithField("username", username).Info("Registered user")
		return nil
	case strings.Contains(strings.ToLower(msg), "already exists"):
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	default:
		return fmt.Errorf("register %s: status %d: %s", username, status, msg)
	}
}

// SeedUser makes sure the account exists. An existing account is fine.
func (c *Client) SeedUser(ctx context.Context, username, password string) error {
	if err := c.Register(ctx, username, password); err != nil && !errors.Is(err, ErrUserExists) {
		return err
	}
	return nil
}

// ClearCart empties the user's server-side cart.
func (c *Client) ClearCart(ctx context.Context, username string) error {
	status, data, err := c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(username)+"/clear", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("clear cart %s: status %d: %s", username, status, gjson.GetBytes(data, "message").String())
	}
	c.log.WithField("username", username).Debug("Cleared cart")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// RemoveUser deletes every entry named username from the backend users file
// and rewrites it with two-space indentation. It reports whether anything
// was removed. A missing file is not an error.
func RemoveUser(usersFile, username string) (bool, error) {
	data, err := os.ReadFile(usersFile)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read users: %w", err)
	}

	var users []json.RawMessage
	if err := json.Unmarshal(data, &users); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", usersFile, err)
	}
	kept := make([]json.RawMessage, 0, len(users))
	for _, u := range users {
		if gjson.GetBytes(u, "username").String() != username {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return false, nil
	}

	out, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return false, err
	}
	info, err := os.Stat(usersFile)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(usersFile, out, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write users: %w", err)
	}
	return true, nil
}

// Cleanup clears each user's cart and removes them from usersFile. It keeps
// going on failure and returns every error joined.
func (c *Client) Cleanup(ctx context.Context, usersFile string, usernames ...string) error {
	var errs []error
	for _, u := range usernames {
		if err := c.ClearCart(ctx, u); err != nil {
			c.log.WithError(err).WithField("username", u).Warn("Could not clear cart")
			errs = append(errs, err)
		}
		if usersFile == "" {
			continue
		}
		removed, err := RemoveUser(usersFile, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed {
			c.log.WithField("username", u).Info("Removed test user")
		}
	}
	return errors.Join(errs...)
}
