package selenium

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

type fakeElement struct {
	text    string
	attrs   map[string]string
	hidden  bool
	options map[string]string // visible text -> option element id
}

// fakeWebDriver is a minimal W3C WebDriver endpoint serving one session.
type fakeWebDriver struct {
	mu       sync.Mutex
	elements map[string]*fakeElement
	locate   map[string][]string // "using=value" -> element ids
	url      string
	clicks   []string
	typed    map[string]string
	handles  []string
	current  string
	quit     bool
}

func newFakeWebDriver() *fakeWebDriver {
	return &fakeWebDriver{
		elements: map[string]*fakeElement{},
		locate:   map[string][]string{},
		typed:    map[string]string{},
		handles:  []string{"main"},
		current:  "main",
	}
}

func (f *fakeWebDriver) add(using, value, id string, el *fakeElement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[id] = el
	key := using + "=" + value
	f.locate[key] = append(f.locate[key], id)
}

// read runs fn with the server state locked.
func (f *fakeWebDriver) read(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func reply(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
}

func noSuchElement(w http.ResponseWriter, what string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": "no such element", "message": "cannot locate " + what},
	})
}

func ref(id string) map[string]string {
	return map[string]string{w3cElementKey: id, "ELEMENT": id}
}

func (f *fakeWebDriver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/wd/hub/session")
	if path == "" && r.Method == http.MethodPost {
		reply(w, map[string]interface{}{
			"sessionId":    "sess-1",
			"capabilities": map[string]interface{}{"browserName": "chrome", "browserVersion": "120.0", "platformName": "linux"},
		})
		return
	}
	path = strings.TrimPrefix(path, "/sess-1")

	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	str := func(key string) string {
		s, _ := body[key].(string)
		return s
	}

	switch {
	case path == "" && r.Method == http.MethodDelete:
		f.quit = true
		reply(w, nil)
	case path == "":
		reply(w, map[string]interface{}{"browserName": "chrome", "browserVersion": "120.0", "platformName": "linux"})
	case path == "/url" && r.Method == http.MethodPost:
		f.url = str("url")
		reply(w, nil)
	case path == "/url":
		reply(w, f.url)
	case path == "/title":
		reply(w, "Demo Web Shop")
	case path == "/screenshot":
		reply(w, base64.StdEncoding.EncodeToString([]byte("png-bytes")))
	case path == "/window/handles" || path == "/window_handles":
		reply(w, f.handles)
	case (path == "/window" || path == "/window_handle") && r.Method == http.MethodGet:
		reply(w, f.current)
	case path == "/window" && r.Method == http.MethodPost:
		handle := str("handle")
		if handle == "" {
			handle = str("name")
		}
		f.current = handle
		reply(w, nil)
	case path == "/window" && r.Method == http.MethodDelete:
		remaining := f.handles[:0]
		for _, h := range f.handles {
			if h != f.current {
				remaining = append(remaining, h)
			}
		}
		f.handles = remaining
		reply(w, f.handles)
	case path == "/element" || path == "/elements":
		key := str("using") + "=" + str("value")
		ids := f.locate[key]
		if path == "/elements" {
			refs := make([]map[string]string, 0, len(ids))
			for _, id := range ids {
				refs = append(refs, ref(id))
			}
			reply(w, refs)
			return
		}
		if len(ids) == 0 {
			noSuchElement(w, key)
			return
		}
		reply(w, ref(ids[0]))
	case strings.HasPrefix(path, "/element/"):
		f.element(w, strings.Split(strings.TrimPrefix(path, "/element/"), "/"), str)
	default:
		// timeouts, maximize
		reply(w, nil)
	}
}

func (f *fakeWebDriver) element(w http.ResponseWriter, parts []string, str func(string) string) {
	id := parts[0]
	el, ok := f.elements[id]
	if !ok || len(parts) < 2 {
		noSuchElement(w, id)
		return
	}
	switch parts[1] {
	case "click":
		f.clicks = append(f.clicks, id)
		reply(w, nil)
	case "clear":
		f.typed[id] = ""
		reply(w, nil)
	case "value":
		f.typed[id] += str("text")
		reply(w, nil)
	case "text":
		reply(w, el.text)
	case "displayed":
		reply(w, !el.hidden)
	case "attribute":
		reply(w, el.attrs[parts[2]])
	case "element":
		for text, optID := range el.options {
			if strings.Contains(str("value"), "'"+text+"'") {
				reply(w, ref(optID))
				return
			}
		}
		noSuchElement(w, str("value"))
	default:
		reply(w, nil)
	}
}

func startFake(t *testing.T) (*fakeWebDriver, *Driver) {
	t.Helper()
	fake := newFakeWebDriver()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	d, err := New(Options{RemoteURL: srv.URL + "/wd/hub", Browser: "chrome", Headless: true, ImplicitWait: time.Second})
	require.NoError(t, err)
	return fake, d
}

func TestNewReportsSessionInfo(t *testing.T) {
	_, d := startFake(t)
	info := d.BrowserInfo()
	assert.Equal(t, "chrome", info.Browser)
	assert.Equal(t, "sess-1", info.SessionID)
	assert.Equal(t, "selenium", info.Driver)
	assert.True(t, info.Headless)
}

func TestNavigationAndTitle(t *testing.T) {
	fake, d := startFake(t)
	require.NoError(t, d.Navigate("https://demowebshop.tricentis.com/"))
	fake.read(func() { assert.Equal(t, "https://demowebshop.tricentis.com/", fake.url) })

	url, err := d.CurrentURL()
	require.NoError(t, err)
	assert.Equal(t, "https://demowebshop.tricentis.com/", url)

	title, err := d.Title()
	require.NoError(t, err)
	assert.Equal(t, "Demo Web Shop", title)
}

func TestElementCommands(t *testing.T) {
	fake, d := startFake(t)
	fake.add(selenium.ByCSSSelector, `[name="Email"]`, "email", &fakeElement{})
	fake.add(selenium.ByLinkText, "Log in", "login", &fakeElement{text: "Log in"})
	fake.add(selenium.ByCSSSelector, ".ico-cart", "cart", &fakeElement{text: "Shopping cart", hidden: true})

	require.NoError(t, d.Type(core.Name("Email"), "shopper@example.com"))
	fake.read(func() { assert.Equal(t, "shopper@example.com", fake.typed["email"]) })

	require.NoError(t, d.Click(core.LinkText("Log in")))
	fake.read(func() { assert.Equal(t, []string{"login"}, fake.clicks) })

	text, err := d.Text(core.LinkText("Log in"))
	require.NoError(t, err)
	assert.Equal(t, "Log in", text)

	shown, err := d.Displayed(core.Class("ico-cart"))
	require.NoError(t, err)
	assert.False(t, shown, "hidden element")

	shown, err = d.Displayed(core.ID("missing"))
	require.NoError(t, err)
	assert.False(t, shown, "missing element")

	assert.Error(t, d.Click(core.ID("missing")))
}

func TestMultiElementCommands(t *testing.T) {
	fake, d := startFake(t)
	links := ".footer-menu-wrapper ul>li>a"
	fake.add(selenium.ByCSSSelector, links, "l1", &fakeElement{text: "Sitemap", attrs: map[string]string{"href": "/sitemap"}})
	fake.add(selenium.ByCSSSelector, links, "l2", &fakeElement{text: "Blog", attrs: map[string]string{"href": "/blog"}})
	fake.add(selenium.ByCSSSelector, ".qty-input", "q1", &fakeElement{})
	fake.add(selenium.ByCSSSelector, ".qty-input", "q2", &fakeElement{})

	texts, err := d.Texts(core.CSS(links))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sitemap", "Blog"}, texts)

	hrefs, err := d.Attributes(core.CSS(links), "href")
	require.NoError(t, err)
	assert.Equal(t, []string{"/sitemap", "/blog"}, hrefs)

	n, err := d.TypeAll(core.CSS(".qty-input"), "2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	fake.read(func() {
		assert.Equal(t, "2", fake.typed["q1"])
		assert.Equal(t, "2", fake.typed["q2"])
	})

	n, err = d.ClickAll(core.CSS(links))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	fake.read(func() { assert.Equal(t, []string{"l1", "l2"}, fake.clicks) })

	n, err = d.ClickAll(core.CSS(".none"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSelectByVisibleText(t *testing.T) {
	fake, d := startFake(t)
	fake.add(selenium.ByCSSSelector, `[id="CountryId"]`, "country", &fakeElement{
		options: map[string]string{"United States": "us"},
	})
	fake.read(func() { fake.elements["us"] = &fakeElement{text: "United States"} })

	require.NoError(t, d.Select(core.ID("CountryId"), "United States"))
	fake.read(func() { assert.Equal(t, []string{"us"}, fake.clicks) })
	assert.Error(t, d.Select(core.ID("CountryId"), "Narnia"))
}

func TestWindows(t *testing.T) {
	fake, d := startFake(t)
	_, err := d.SwitchToNewWindow()
	assert.Error(t, err, "only one window open")

	fake.read(func() { fake.handles = append(fake.handles, "terms") })
	parent, err := d.SwitchToNewWindow()
	require.NoError(t, err)
	assert.Equal(t, "main", parent)
	fake.read(func() { assert.Equal(t, "terms", fake.current) })

	require.NoError(t, d.CloseWindow(parent))
	fake.read(func() {
		assert.Equal(t, []string{"main"}, fake.handles)
		assert.Equal(t, "main", fake.current)
	})
}

func TestScreenshotAndQuit(t *testing.T) {
	fake, d := startFake(t)
	data, err := d.Screenshot()
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, d.Quit())
	fake.read(func() { assert.True(t, fake.quit) })
}

func TestBy(t *testing.T) {
	tests := []struct {
		sel       core.Selector
		wantBy    string
		wantValue string
	}{
		{core.CSS("span.read"), selenium.ByCSSSelector, "span.read"},
		{core.XPath("//a"), selenium.ByXPATH, "//a"},
		{core.ID("checkout"), selenium.ByCSSSelector, `[id="checkout"]`},
		{core.Name("q"), selenium.ByCSSSelector, `[name="q"]`},
		{core.LinkText("Orders"), selenium.ByLinkText, "Orders"},
		{core.Class("account"), selenium.ByCSSSelector, ".account"},
	}
	for _, tt := range tests {
		gotBy, gotValue, err := by(tt.sel)
		if err != nil {
			t.Fatalf("by(%s) error: %v", tt.sel, err)
		}
		if gotBy != tt.wantBy || gotValue != tt.wantValue {
			t.Errorf("by(%s) = %q, %q, want %q, %q", tt.sel, gotBy, gotValue, tt.wantBy, tt.wantValue)
		}
	}

	if _, _, err := by(core.Selector{By: "tag"}); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := map[string]string{
		"United States": "'United States'",
		"Côte d'Ivoire": `"Côte d'Ivoire"`,
		`a'b"c`:         `concat('a', "'", 'b"c')`,
	}
	for in, want := range tests {
		if got := xpathLiteral(in); got != want {
			t.Errorf("xpathLiteral(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCapabilities(t *testing.T) {
	dir := t.TempDir()

	caps, err := Capabilities(Options{Browser: "chrome", Headless: true, DownloadDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "chrome", caps["browserName"])
	c, ok := caps[chrome.CapabilitiesKey].(chrome.Capabilities)
	require.True(t, ok)
	assert.Contains(t, c.Args, "--headless=new")
	assert.Equal(t, dir, c.Prefs["download.default_directory"])

	caps, err = Capabilities(Options{Browser: "firefox", DownloadDir: dir})
	require.NoError(t, err)
	f, ok := caps[firefox.CapabilitiesKey].(firefox.Capabilities)
	require.True(t, ok)
	assert.Empty(t, f.Args)
	assert.Equal(t, dir, f.Prefs["browser.download.dir"])

	_, err = Capabilities(Options{Browser: "netscape"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
