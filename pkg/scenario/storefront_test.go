package scenario

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"dev/bravebird/storefront-e2e/pkg/page"
	"dev/bravebird/storefront-e2e/pkg/page/pagetest"
)

// storefront is an in-memory stand-in for the shop frontend and its
// backend: routes, auth guard, login validation and a server-side cart.
type storefront struct {
	mu       sync.Mutex
	base     string
	path     string
	users    map[string]string
	loggedIn string
	cart     int
	added    bool
	msg      string
	showPass bool
	username *pagetest.Element
	password *pagetest.Element
	history  []string
	pos      int
	navs     int
	reloads  int
}

var _ page.Page = (*storefront)(nil)

func newStorefront() *storefront {
	s := &storefront{
		base:  "http://shop.test",
		users: map[string]string{"testuser": "password123"},
	}
	s.visit("/")
	s.history = []string{s.path}
	return s
}

// visit loads path, applying the auth guard. Callers hold s.mu.
func (s *storefront) visit(path string) {
	if (path == "/dashboard" || path == "/cart") && s.loggedIn == "" {
		path = "/login"
	}
	s.path = path
	s.msg = ""
	s.added = false
	s.showPass = false
	s.username = pagetest.NewElement("")
	s.password = pagetest.NewElement("").SetAttr("type", "password")
}

func (s *storefront) push(path string) {
	s.visit(path)
	s.history = append(s.history[:s.pos+1], s.path)
	s.pos = len(s.history) - 1
}

func (s *storefront) button(text string, fn func()) *pagetest.Element {
	el := pagetest.NewElement(text)
	el.OnClick = func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn()
		return nil
	}
	return el
}

type node struct {
	tag  string
	text string
	css  []string
	el   page.Element
}

func (s *storefront) nodes() []node {
	text := func(tag, t string, css ...string) node {
		return node{tag: tag, text: t, css: css, el: pagetest.NewElement(t)}
	}
	nav := []node{text("a", "SUNNY")}
	if s.loggedIn == "" {
		nav = append(nav,
			node{tag: "a", text: "Register", el: s.button("Register", func() { s.push("/register") })},
			node{tag: "a", text: "Login", el: s.button("Login", func() { s.push("/login") })},
		)
	} else {
		nav = append(nav,
			node{tag: "a", text: "Dashboard", el: s.button("Dashboard", func() { s.push("/dashboard") })},
			node{tag: "a", text: "Cart", el: s.button("Cart", func() { s.push("/cart") })},
			node{tag: "button", text: "Logout", el: s.button("Logout", func() {
				s.loggedIn = ""
				s.push("/")
			})},
		)
	}

	switch s.path {
	case "/login":
		pwCSS := []string{"input[placeholder='Password']"}
		if !s.showPass {
			pwCSS = append(pwCSS, "input[type='password']")
		}
		return append(nav,
			text("h2", "Login"),
			node{tag: "input", css: []string{"input[placeholder='Username']"}, el: s.username},
			node{tag: "input", css: pwCSS, el: s.password},
			node{tag: "button", text: "Show Password", el: s.button("Show Password", func() {
				s.showPass = !s.showPass
				if s.showPass {
					s.password.SetAttr("type", "text")
				} else {
					s.password.SetAttr("type", "password")
				}
			})},
			node{tag: "button", text: "Login", el: s.button("Login", s.submitLogin)},
			node{tag: "button", text: "Register", el: s.button("Register", func() { s.push("/register") })},
			text("p", s.msg),
		)

	case "/dashboard":
		out := append(nav, text("h2", "Hello, "+s.loggedIn), text("h3", "Our Products"))
		if s.added {
			out = append(out, text("h3", "Item added to cart"))
		}
		for _, name := range []string{"Running Shoes", "Leather Wallet"} {
			out = append(out,
				text("div", name, ".product-card"),
				node{tag: "button", text: "Add to Cart", el: s.button("Add to Cart", func() {
					s.cart++
					s.added = true
				})},
			)
		}
		return out

	case "/cart":
		out := append(nav, text("h2", "Your Cart"))
		if s.cart == 0 {
			return append(out, text("p", "YOUR CART IS EMPTY"))
		}
		for i := 0; i < s.cart; i++ {
			out = append(out,
				text("div", fmt.Sprintf("Item %d", i+1), ".cart-item"),
				node{tag: "button", text: "Remove", css: []string{".remove-btn"}, el: s.button("Remove", func() { s.cart-- })},
			)
		}
		return append(out,
			text("h3", fmt.Sprintf("Total Cost: ₹%d", s.cart*499)),
			node{tag: "button", text: "Clear All", el: s.button("Clear All", func() { s.cart = 0 })},
		)

	case "/register":
		return append(nav, text("h2", "Register"))

	case "/":
		return append(nav, text("h1", "Welcome to SUNNY"))

	default:
		// no catch-all route: unknown paths render the navbar alone
		return nav
	}
}

func (s *storefront) submitLogin() {
	pw := s.password.Value()
	switch {
	case pw == "":
		s.msg = "Password is empty"
	case len(pw) < 6:
		s.msg = "Minimum password length should be 6"
	case s.users[s.username.Value()] == pw:
		s.loggedIn = s.username.Value()
		s.push("/dashboard")
	default:
		s.msg = "Invalid credentials"
	}
}

var (
	xpathTag      = regexp.MustCompile(`^//([\w*]+)\[`)
	xpathLiterals = regexp.MustCompile(`'([^']*)'`)
)

func (n node) matches(loc page.Locator) bool {
	switch {
	case loc.CSS != "":
		for _, c := range n.css {
			if c == loc.CSS {
				return true
			}
		}
		return false
	case loc.XPath != "":
		m := xpathTag.FindStringSubmatch(loc.XPath)
		if m == nil || (m[1] != "*" && m[1] != n.tag) || n.text == "" {
			return false
		}
		for _, lit := range xpathLiterals.FindAllStringSubmatch(loc.XPath, -1) {
			if strings.Contains(n.text, lit[1]) {
				return true
			}
		}
		return false
	default:
		if loc.Tag != "" && loc.Tag != n.tag {
			return false
		}
		return n.text != "" && strings.Contains(n.text, loc.Text)
	}
}

func (s *storefront) URL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base + s.path, nil
}

func (s *storefront) ReadyState() (string, error) { return "complete", nil }

func (s *storefront) Find(loc page.Locator) ([]page.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []page.Element
	for _, n := range s.nodes() {
		if n.matches(loc) {
			out = append(out, n.el)
		}
	}
	return out, nil
}

func (s *storefront) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, n := range s.nodes() {
		if n.text != "" {
			fmt.Fprintf(&b, "<%s>%s</%s>", n.tag, html.EscapeString(n.text), n.tag)
		}
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

func (s *storefront) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navs++
	s.push(strings.TrimPrefix(url, s.base))
	return nil
}

func (s *storefront) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos > 0 {
		s.pos--
		s.visit(s.history[s.pos])
	}
	return nil
}

func (s *storefront) Forward() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < len(s.history)-1 {
		s.pos++
		s.visit(s.history[s.pos])
	}
	return nil
}

// Reload re-renders the current path. Login state and the server-side cart
// survive it.
func (s *storefront) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	s.visit(s.path)
	return nil
}

func (s *storefront) PressKey(string) error           { return nil }
func (s *storefront) SetViewport(width, height int) error { return nil }
func (s *storefront) Screenshot() ([]byte, error)     { return []byte("\x89PNG"), nil }

// snapshot returns the observable state for idempotence checks.
func (s *storefront) snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var parts []string
	for _, n := range s.nodes() {
		parts = append(parts, n.tag+":"+n.text)
	}
	return s.path + "|" + strings.Join(parts, ",")
}
