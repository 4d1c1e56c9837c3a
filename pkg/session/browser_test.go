package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/storefront-e2e/pkg/page"
)

// TestBrowserSmoke drives a real browser against a local page. It needs a
// Chromium install and runs only with E2E_BROWSER_TESTS=1.
func TestBrowserSmoke(t *testing.T) {
	if os.Getenv("E2E_BROWSER_TESTS") != "1" {
		t.Skip("set E2E_BROWSER_TESTS=1 to run browser tests")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<h1>Our Products</h1>
<input name="username"><button disabled>Add to Cart</button>
<script>document.querySelector('h1').dataset.webdriver = String(navigator.webdriver)</script>
</body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	f := NewFactory(NewProfile(), NewResolver(nil, DefaultCandidates(os.Getenv("CHROME_BIN"), nil, true)...), 30*time.Second, nil)
	s, err := f.Open(ctx)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Navigate(srv.URL))
	url, err := s.URL()
	require.NoError(t, err)
	assert.Contains(t, url, srv.URL)

	els, err := s.Find(page.Text("h1", "Our Products"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	hidden, ok, err := els[0].Attribute("data-webdriver")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "undefined", hidden)

	btn, err := s.Find(page.Text("button", "Add to Cart"))
	require.NoError(t, err)
	require.Len(t, btn, 1)
	enabled, err := btn[0].Enabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	in, err := s.Find(page.CSS("input[name='username']"))
	require.NoError(t, err)
	require.NoError(t, in[0].Input("testuser"))

	require.NoError(t, s.Reload())
	url, err = s.URL()
	require.NoError(t, err)
	assert.Contains(t, url, srv.URL)

	shot, err := s.Screenshot()
	require.NoError(t, err)
	assert.NotEmpty(t, shot)

	idx, err := s.OpenTab()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	require.NoError(t, s.SwitchTab(idx))
	require.NoError(t, s.CloseTab(idx))
	assert.Equal(t, 1, s.TabCount())

	// closing the active tab hands focus back to the first one
	url, err = s.URL()
	require.NoError(t, err)
	assert.Contains(t, url, srv.URL)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
