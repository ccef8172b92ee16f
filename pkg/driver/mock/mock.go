// Package mock provides a scripted in-memory browser for testing without a real browser.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// Element is a scripted page element, keyed by its selector string.
type Element struct {
	Text   string
	Texts  []string // text of every matching element, defaults to Text
	Hidden bool
	Attrs  map[string][]string // one value per matching element
}

// all returns the text of every matching element.
func (e Element) all() []string {
	if e.Texts != nil {
		return e.Texts
	}
	return []string{e.Text}
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnCommand makes command N fail (1-indexed). 0 = never fail.
	FailOnCommand int
	// CommandDelay adds artificial delay per command
	CommandDelay time.Duration
	// ScreenshotErr is returned by Screenshot when set
	ScreenshotErr error
	// QuitErr is returned by Quit when set
	QuitErr error
	// Elements present on every page
	Elements map[string]Element
	// Titles by URL
	Titles map[string]string
	// OnClick runs after every click, letting tests change the page
	OnClick func(d *Driver, sel core.Selector) error
	// Browser name to report
	Browser string
}

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	Config Config

	mu           sync.Mutex
	elements     map[string]Element
	popups       []map[string]Element
	parent       map[string]Element
	url          string
	commandCount int
	navigations  []string
	clicks       []core.Selector
	typed        map[string]string
	selected     map[string]string
	screenshots  int
	quit         bool
	sessionID    string
}

var ids struct {
	sync.Mutex
	next int
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Browser == "" {
		cfg.Browser = "mock"
	}
	elements := make(map[string]Element, len(cfg.Elements))
	for k, v := range cfg.Elements {
		elements[k] = v
	}
	ids.Lock()
	ids.next++
	id := ids.next
	ids.Unlock()

	return &Driver{
		Config:    cfg,
		elements:  elements,
		typed:     make(map[string]string),
		selected:  make(map[string]string),
		sessionID: fmt.Sprintf("mock-session-%d", id),
	}
}

// ErrNoSuchElement is returned for selectors with no scripted element.
var ErrNoSuchElement = errors.New("no such element")

// command counts a command and applies the configured delay and failure.
func (d *Driver) command(name string) error {
	d.commandCount++
	if d.quit {
		return fmt.Errorf("mock %s: session already closed", name)
	}
	if d.Config.CommandDelay > 0 {
		time.Sleep(d.Config.CommandDelay)
	}
	if d.Config.FailOnCommand > 0 && d.commandCount == d.Config.FailOnCommand {
		return fmt.Errorf("mock failure on command %d (%s)", d.commandCount, name)
	}
	return nil
}

func (d *Driver) find(sel core.Selector) (Element, error) {
	el, ok := d.elements[sel.String()]
	if !ok {
		return Element{}, fmt.Errorf("%w: %s", ErrNoSuchElement, sel)
	}
	return el, nil
}

// SetElement adds or replaces a scripted element.
func (d *Driver) SetElement(sel core.Selector, el Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[sel.String()] = el
}

// RemoveElement deletes a scripted element.
func (d *Driver) RemoveElement(sel core.Selector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, sel.String())
}

// Navigate records the URL.
func (d *Driver) Navigate(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("navigate"); err != nil {
		return err
	}
	d.url = url
	d.navigations = append(d.navigations, url)
	return nil
}

// CurrentURL returns the last navigated URL.
func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("currentURL"); err != nil {
		return "", err
	}
	return d.url, nil
}

// Title returns the scripted title of the current URL.
func (d *Driver) Title() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("title"); err != nil {
		return "", err
	}
	return d.Config.Titles[d.url], nil
}

// Click records the click and runs the OnClick hook.
func (d *Driver) Click(sel core.Selector) error {
	d.mu.Lock()
	if err := d.command("click"); err != nil {
		d.mu.Unlock()
		return err
	}
	if _, err := d.find(sel); err != nil {
		d.mu.Unlock()
		return err
	}
	d.clicks = append(d.clicks, sel)
	hook := d.Config.OnClick
	d.mu.Unlock()

	if hook != nil {
		return hook(d, sel)
	}
	return nil
}

// Type records the text typed into sel.
func (d *Driver) Type(sel core.Selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("type"); err != nil {
		return err
	}
	if _, err := d.find(sel); err != nil {
		return err
	}
	d.typed[sel.String()] = text
	return nil
}

// Select records the option picked in sel.
func (d *Driver) Select(sel core.Selector, visibleText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("select"); err != nil {
		return err
	}
	if _, err := d.find(sel); err != nil {
		return err
	}
	d.selected[sel.String()] = visibleText
	return nil
}

// Text returns the scripted element text.
func (d *Driver) Text(sel core.Selector) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("text"); err != nil {
		return "", err
	}
	el, err := d.find(sel)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

// Attributes returns the scripted attribute values.
func (d *Driver) Attributes(sel core.Selector, name string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("attributes"); err != nil {
		return nil, err
	}
	el, ok := d.elements[sel.String()]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), el.Attrs[name]...), nil
}

// Texts returns the scripted text of every matching element.
func (d *Driver) Texts(sel core.Selector) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("texts"); err != nil {
		return nil, err
	}
	el, ok := d.elements[sel.String()]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), el.all()...), nil
}

// ClickAll records one click per matching element and runs the OnClick hook once.
func (d *Driver) ClickAll(sel core.Selector) (int, error) {
	d.mu.Lock()
	if err := d.command("clickAll"); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	el, ok := d.elements[sel.String()]
	if !ok {
		d.mu.Unlock()
		return 0, nil
	}
	n := len(el.all())
	for i := 0; i < n; i++ {
		d.clicks = append(d.clicks, sel)
	}
	hook := d.Config.OnClick
	d.mu.Unlock()

	if hook != nil {
		return n, hook(d, sel)
	}
	return n, nil
}

// TypeAll records text typed into every matching element.
func (d *Driver) TypeAll(sel core.Selector, text string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("typeAll"); err != nil {
		return 0, err
	}
	el, ok := d.elements[sel.String()]
	if !ok {
		return 0, nil
	}
	d.typed[sel.String()] = text
	return len(el.all()), nil
}

// OpenWindow queues a popup window with its own elements, as a link with target=_blank would.
func (d *Driver) OpenWindow(elements map[string]Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.popups = append(d.popups, elements)
}

// SwitchToNewWindow focuses the oldest queued popup.
func (d *Driver) SwitchToNewWindow() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("switchWindow"); err != nil {
		return "", err
	}
	if len(d.popups) == 0 {
		return "", errors.New("mock: no new window found")
	}
	d.parent = d.elements
	d.elements = d.popups[0]
	d.popups = d.popups[1:]
	return "main", nil
}

// CloseWindow closes the popup and restores the main window.
func (d *Driver) CloseWindow(handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("closeWindow"); err != nil {
		return err
	}
	if d.parent == nil || handle != "main" {
		return fmt.Errorf("mock: no window %q to return to", handle)
	}
	d.elements = d.parent
	d.parent = nil
	return nil
}

// Displayed reports whether the element exists and is not hidden.
func (d *Driver) Displayed(sel core.Selector) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("displayed"); err != nil {
		return false, err
	}
	el, ok := d.elements[sel.String()]
	return ok && !el.Hidden, nil
}

// pngPixel is a minimal valid PNG (1x1 transparent pixel).
var pngPixel = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Config.ScreenshotErr != nil {
		return nil, d.Config.ScreenshotErr
	}
	if d.quit {
		return nil, errors.New("mock screenshot: session already closed")
	}
	d.screenshots++
	return append([]byte(nil), pngPixel...), nil
}

// Quit closes the mock session.
func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quit = true
	return d.Config.QuitErr
}

// BrowserInfo returns mock browser info.
func (d *Driver) BrowserInfo() *core.BrowserInfo {
	return &core.BrowserInfo{
		Browser:   d.Config.Browser,
		Version:   "1.0",
		Platform:  "mock",
		SessionID: d.sessionID,
		Headless:  true,
		Driver:    "mock",
	}
}

// Closed reports whether Quit was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quit
}

// Navigations returns the URLs navigated to.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Clicks returns the clicked selectors in order.
func (d *Driver) Clicks() []core.Selector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Selector(nil), d.clicks...)
}

// Typed returns the text typed into sel.
func (d *Driver) Typed(sel core.Selector) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typed[sel.String()]
}

// Selected returns the option picked in sel.
func (d *Driver) Selected(sel core.Selector) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected[sel.String()]
}

// Screenshots returns how many screenshots were taken.
func (d *Driver) Screenshots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screenshots
}

// Pool creates a fresh mock driver per session and remembers them for assertions.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	drivers []*Driver
	// StartErr, when set, is returned by the next StartFailures factory calls
	StartErr      error
	StartFailures int
}

// NewPool creates a pool whose drivers share cfg.
func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// Factory returns a core.DriverFactory backed by the pool.
func (p *Pool) Factory() core.DriverFactory {
	return func(ctx context.Context) (core.Driver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.StartFailures > 0 {
			p.StartFailures--
			return nil, p.StartErr
		}
		d := New(p.cfg)
		p.drivers = append(p.drivers, d)
		return d, nil
	}
}

// Drivers returns every driver the pool created, in creation order.
func (p *Pool) Drivers() []*Driver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Driver(nil), p.drivers...)
}
