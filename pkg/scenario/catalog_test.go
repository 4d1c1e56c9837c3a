package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/page"
)

func TestBuiltinCatalog(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	all := c.All()
	require.NotEmpty(t, all)

	counts := map[models.Category]int{}
	for _, sc := range all {
		counts[sc.Category]++
		for i, step := range sc.Steps {
			assert.NotEqual(t, ActionInclude, step.Action, "%s step %d was not expanded", sc.Name, i)
		}
	}
	for _, cat := range models.Categories() {
		if cat == models.CategoryAll {
			continue
		}
		assert.Positive(t, counts[cat], "category %s has no scenarios", cat)
	}

	// run order follows category order
	rank := map[models.Category]int{}
	for i, cat := range models.Categories() {
		rank[cat] = i
	}
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, rank[all[i-1].Category], rank[all[i].Category])
	}
}

func TestBuiltinIncludesExpandFragments(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	sc, ok := c.Get("Login valid credentials")
	require.True(t, ok)
	require.GreaterOrEqual(t, len(sc.Steps), 5)
	assert.Equal(t, ActionNavigate, sc.Steps[0].Action)
	assert.Equal(t, "/login", sc.Steps[0].Value)
	assert.Equal(t, "{{username}}", sc.Steps[1].Value)

	cart, ok := c.Get("Cart add then clear")
	require.True(t, ok)
	var optional int
	for _, s := range cart.Steps {
		if s.Optional {
			optional++
			assert.Equal(t, ActionWaitVisible, s.Action)
		}
	}
	assert.Equal(t, 1, optional)
}

func TestCatalogSelect(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	login, err := c.Select(models.CategoryLogin, nil)
	require.NoError(t, err)
	require.NotEmpty(t, login)
	for _, sc := range login {
		assert.Equal(t, models.CategoryLogin, sc.Category)
	}

	all, err := c.Select(models.CategoryAll, nil)
	require.NoError(t, err)
	assert.Len(t, all, len(c.All()))

	named, err := c.Select(models.CategoryAll, []string{"Cart total", "Login valid credentials"})
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, "Cart total", named[0].Name)

	filtered, err := c.Select(models.CategoryCart, []string{"Cart total", "Login valid credentials"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Cart total", filtered[0].Name)

	_, err = c.Select(models.CategoryAll, []string{"No such scenario"})
	assert.ErrorContains(t, err, "No such scenario")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		docs    map[string][]byte
		wantErr string
	}{
		{
			name: "valid table",
			docs: map[string][]byte{"a.yaml": []byte(`
category: login
fragments:
  open:
    - action: navigate
      value: /login
scenarios:
  - name: Opens
    steps:
      - action: include
        value: open
      - action: pause
        duration: 500ms
`)},
		},
		{
			name: "unknown fragment",
			docs: map[string][]byte{"a.yaml": []byte(`
category: login
scenarios:
  - name: Broken
    steps:
      - action: include
        value: nowhere
`)},
			wantErr: `unknown fragment "nowhere"`,
		},
		{
			name: "duplicate scenario",
			docs: map[string][]byte{
				"a.yaml": []byte("category: cart\nscenarios:\n  - name: Same\n    steps:\n      - action: back\n"),
				"b.yaml": []byte("category: cart\nscenarios:\n  - name: Same\n    steps:\n      - action: back\n"),
			},
			wantErr: "defined twice",
		},
		{
			name:    "invalid category",
			docs:    map[string][]byte{"a.yaml": []byte("category: checkout\nscenarios:\n  - name: X\n    steps:\n      - action: back\n")},
			wantErr: "invalid category",
		},
		{
			name:    "step missing target",
			docs:    map[string][]byte{"a.yaml": []byte("category: cart\nscenarios:\n  - name: X\n    steps:\n      - action: click\n")},
			wantErr: "target is required",
		},
		{
			name: "self include",
			docs: map[string][]byte{"a.yaml": []byte(`
category: cart
fragments:
  loop:
    - action: include
      value: loop
scenarios:
  - name: Loops
    steps:
      - action: include
        value: loop
`)},
			wantErr: "nested deeper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.docs)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			sc, ok := c.Get("Opens")
			require.True(t, ok)
			assert.Equal(t, models.CategoryLogin, sc.Category)
			require.Len(t, sc.Steps, 2)
			assert.Equal(t, 500*time.Millisecond, sc.Steps[1].Duration)
		})
	}
}

func TestLoadFileUsesBuiltinFragments(t *testing.T) {
	file := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
category: integration
scenarios:
  - name: Smoke
    steps:
      - action: include
        value: login
      - action: assert_text
        target: {css: h2}
        value: Hello
`), 0o644))

	c, err := LoadFile(file)
	require.NoError(t, err)
	require.Len(t, c.All(), 1)
	sc := c.All()[0]
	assert.Equal(t, "Smoke", sc.Name)
	assert.Greater(t, len(sc.Steps), 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStepValidate(t *testing.T) {
	target := &page.Locator{CSS: "#x"}
	zero := 0
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"navigate", Step{Action: ActionNavigate, Value: "/"}, false},
		{"navigate without url", Step{Action: ActionNavigate}, true},
		{"fill", Step{Action: ActionFill, Target: target}, false},
		{"bad locator", Step{Action: ActionClick, Target: &page.Locator{CSS: "a", XPath: "//a"}}, true},
		{"attr", Step{Action: ActionAssertAttr, Target: target, Attr: "type"}, false},
		{"attr without name", Step{Action: ActionAssertAttr, Target: target}, true},
		{"count zero", Step{Action: ActionAssertCount, Target: target, Count: &zero}, false},
		{"count missing", Step{Action: ActionAssertCount, Target: target}, true},
		{"text any_of", Step{Action: ActionAssertText, AnyOf: []string{"a"}}, false},
		{"text empty", Step{Action: ActionAssertText}, true},
		{"viewport", Step{Action: ActionViewport, Width: 375, Height: 667}, false},
		{"viewport zero", Step{Action: ActionViewport}, true},
		{"pause", Step{Action: ActionPause, Duration: time.Second}, false},
		{"pause zero", Step{Action: ActionPause}, true},
		{"switch tab", Step{Action: ActionSwitchTab, Tab: 2}, false},
		{"negative tab", Step{Action: ActionCloseTab, Tab: -1}, true},
		{"back", Step{Action: ActionBack}, false},
		{"reload", Step{Action: ActionReload}, false},
		{"unexpanded include", Step{Action: ActionInclude, Value: "login"}, true},
		{"missing action", Step{}, true},
		{"unknown action", Step{Action: "hover"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStepDescribe(t *testing.T) {
	three := 3
	assert.Equal(t, "custom", Step{Action: ActionClick, Name: "custom"}.Describe())
	assert.Equal(t, `click text=button:"Login"`, Step{Action: ActionClick, Target: &page.Locator{Tag: "button", Text: "Login"}}.Describe())
	assert.Equal(t, "assert_count css=.cart-item >= 3", Step{Action: ActionAssertCount, Target: &page.Locator{CSS: ".cart-item"}, Count: &three, AtLeast: true}.Describe())
	assert.Equal(t, `assert_url "/dashboard" (negated)`, Step{Action: ActionAssertURL, Value: "/dashboard", Negate: true}.Describe())
	assert.Equal(t, "viewport 375x667", Step{Action: ActionViewport, Width: 375, Height: 667}.Describe())
}

func TestParams(t *testing.T) {
	p := Params{ParamBaseURL: "http://localhost:5173/", ParamUsername: "testuser"}

	assert.Equal(t, "hi testuser", p.Expand("hi {{username}}"))
	assert.Equal(t, "{{nope}}", p.Expand("{{nope}}"))
	assert.Equal(t, "{{ username }}", p.Expand("{{ username }}"))
}

func TestParamsExpandIsSinglePass(t *testing.T) {
	p := Params{
		ParamUsername: "{{password}}",
		ParamPassword: "secret",
		"greeting":    "hi {{username}}",
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, "{{password}}/secret", p.Expand("{{username}}/{{password}}"))
		assert.Equal(t, "hi {{username}}!", p.Expand("{{greeting}}!"))
	}
	assert.Equal(t, "http://localhost:5173/login", p.URL("/login"))
	assert.Equal(t, "https://example.com/x", p.URL("https://example.com/x"))

	q := p.With(ParamUnique, "42")
	assert.Equal(t, "42", q[ParamUnique])
	_, leaked := p[ParamUnique]
	assert.False(t, leaked, "With must not modify the receiver")
}
