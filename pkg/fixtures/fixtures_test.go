package fixtures

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend mimics the storefront API's register and cart endpoints.
type backend struct {
	mu      sync.Mutex
	users   map[string]string
	cleared []string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/register":
		var body struct{ Username, Password string }
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil || body.Username == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Invalid request body"}`))
			return
		}
		if _, ok := b.users[body.Username]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"User already exists"}`))
			return
		}
		b.users[body.Username] = body.Password
		_, _ = w.Write([]byte(`{"message":"User registered successfully"}`))

	case r.Method == http.MethodDelete && len(r.URL.Path) > len("/cart//clear"):
		user := r.URL.Path[len("/cart/") : len(r.URL.Path)-len("/clear")]
		b.cleared = append(b.cleared, user)
		_, _ = w.Write([]byte(`{"message":"Cart cleared successfully"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

func newBackend(t *testing.T) (*backend, *Client) {
	t.Helper()
	b := &backend{users: map[string]string{"testuser": "password123"}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, NewClient(srv.URL+"/", time.Second, nil)
}

func TestRegister(t *testing.T) {
	b, c := newBackend(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "alice", "secret1"))
	assert.Equal(t, "secret1", b.users["alice"])

	err := c.Register(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, ErrUserExists)

	err = c.Register(ctx, "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid request body")
}

func TestSeedUserIsIdempotent(t *testing.T) {
	b, c := newBackend(t)
	ctx := context.Background()

	require.NoError(t, c.SeedUser(ctx, "testuser", "password123"))
	require.NoError(t, c.SeedUser(ctx, "bob", "hunter22"))
	require.NoError(t, c.SeedUser(ctx, "bob", "hunter22"))
	assert.Len(t, b.users, 2)
}

func TestClearCart(t *testing.T) {
	b, c := newBackend(t)

	require.NoError(t, c.ClearCart(context.Background(), "testuser"))
	assert.Equal(t, []string{"testuser"}, b.cleared)
}

func TestClearCartUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second, nil).ClearCart(context.Background(), "testuser")
	assert.Error(t, err)
}

func TestRemoveUser(t *testing.T) {
	file := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"username":"testuser","password":"password123"},{"username":"testuser_selenium","password":"testpass123","extra":true}]`), 0o600))

	removed, err := RemoveUser(file, "testuser_selenium")
	require.NoError(t, err)
	assert.True(t, removed)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"username\": \"testuser\",\n    \"password\": \"password123\"\n  }\n]", string(data))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	removed, err = RemoveUser(file, "nobody")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveUserMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()

	removed, err := RemoveUser(filepath.Join(dir, "missing.json"), "x")
	require.NoError(t, err)
	assert.False(t, removed)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = RemoveUser(bad, "x")
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	b, c := newBackend(t)
	file := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"username":"a"},{"username":"b"}]`), 0o644))

	require.NoError(t, c.Cleanup(context.Background(), file, "a", "b"))
	assert.Equal(t, []string{"a", "b"}, b.cleared)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
