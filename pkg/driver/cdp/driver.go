// Package cdp drives a local Chrome over the DevTools protocol, without a
// Selenium server.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// DefaultCommandTimeout bounds every DevTools command.
const DefaultCommandTimeout = 10 * time.Second

// Options configures the Chrome process.
type Options struct {
	Headless       bool
	ExecPath       string // Chrome binary, looked up on PATH when empty
	DownloadDir    string
	CommandTimeout time.Duration
}

type tab struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
}

// Driver implements core.Driver with chromedp.
type Driver struct {
	mu          sync.Mutex
	allocCancel context.CancelFunc
	root        *tab
	tabs        []*tab // focus stack, current last
	timeout     time.Duration
	info        *core.BrowserInfo
}

// AllocatorOptions returns the Chrome flags for opts.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// New launches Chrome and opens the first tab.
func New(ctx context.Context, opts Options) (*Driver, error) {
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	d := &Driver{
		allocCancel: allocCancel,
		timeout:     timeout,
		info:        &core.BrowserInfo{Browser: "chrome", Headless: opts.Headless, Driver: "cdp"},
	}
	d.root = &tab{ctx: browserCtx, cancel: cancel}
	d.tabs = []*tab{d.root}

	// The first Run starts the browser and must not use a derived context,
	// so cancellation of ctx is forwarded by hand until startup is done.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var product string
	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			_, product, _, _, _, err = browser.GetVersion().Do(ctx)
			return err
		}),
	}
	if opts.DownloadDir != "" {
		dir, err := filepath.Abs(opts.DownloadDir)
		if err != nil {
			d.shutdown()
			return nil, err
		}
		actions = append(actions, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true))
	}
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		d.root.id = c.Target.TargetID
		d.info.SessionID = string(c.Target.TargetID)
	}
	d.info.Version = strings.TrimPrefix(product, "HeadlessChrome/")
	d.info.Version = strings.TrimPrefix(d.info.Version, "Chrome/")
	return d, nil
}

// Factory returns a core.DriverFactory launching one Chrome per call.
func Factory(opts Options) core.DriverFactory {
	return func(ctx context.Context) (core.Driver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(ctx, opts)
	}
}

// query maps a selector onto a chromedp selector and query option.
func query(sel core.Selector) (string, chromedp.QueryOption, error) {
	switch sel.By {
	case core.ByCSS:
		return sel.Value, chromedp.ByQuery, nil
	case core.ByXPath:
		return sel.Value, chromedp.BySearch, nil
	case core.ByID:
		return fmt.Sprintf("[id=%q]", sel.Value), chromedp.ByQuery, nil
	case core.ByName:
		return fmt.Sprintf("[name=%q]", sel.Value), chromedp.ByQuery, nil
	case core.ByClass:
		return "." + sel.Value, chromedp.ByQuery, nil
	case core.ByLinkText:
		return fmt.Sprintf("//a[normalize-space(.)=%q]", sel.Value), chromedp.BySearch, nil
	default:
		return "", nil, fmt.Errorf("unsupported locator %q", sel.By)
	}
}

func (d *Driver) current() *tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tabs[len(d.tabs)-1]
}

// run executes actions on the focused tab within the command timeout.
func (d *Driver) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(d.current().ctx, d.timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// nodes returns every node matching sel without waiting for one to appear.
func (d *Driver) nodes(sel core.Selector) ([]*cdp.Node, error) {
	q, by, err := query(sel)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := d.run(chromedp.Nodes(q, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (d *Driver) first(sel core.Selector) (*cdp.Node, error) {
	nodes, err := d.nodes(sel)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no element matches %s", sel)
	}
	return nodes[0], nil
}

func ids(nodes ...*cdp.Node) []cdp.NodeID {
	out := make([]cdp.NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeID
	}
	return out
}

// Navigate loads url and waits for the page load event.
func (d *Driver) Navigate(url string) error {
	return d.run(chromedp.Navigate(url))
}

// CurrentURL returns the URL of the focused tab.
func (d *Driver) CurrentURL() (string, error) {
	var url string
	err := d.run(chromedp.Location(&url))
	return url, err
}

// Title returns the title of the focused tab.
func (d *Driver) Title() (string, error) {
	var title string
	err := d.run(chromedp.Title(&title))
	return title, err
}

// Click clicks the first element matching sel.
func (d *Driver) Click(sel core.Selector) error {
	n, err := d.first(sel)
	if err != nil {
		return err
	}
	return d.run(chromedp.MouseClickNode(n))
}

// Type clears the first element matching sel and types text.
func (d *Driver) Type(sel core.Selector, text string) error {
	n, err := d.first(sel)
	if err != nil {
		return err
	}
	return d.typeInto(n, text)
}

func (d *Driver) typeInto(n *cdp.Node, text string) error {
	return d.run(
		chromedp.Clear(ids(n), chromedp.ByNodeID),
		chromedp.SendKeys(ids(n), text, chromedp.ByNodeID),
	)
}

// selectByText picks the option with the given text and fires change.
const selectByText = `function(text) {
	for (const o of this.options) {
		if (o.text.trim() === text) {
			this.value = o.value;
			this.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
}`

// Select picks the option whose visible text is visibleText.
func (d *Driver) Select(sel core.Selector, visibleText string) error {
	n, err := d.first(sel)
	if err != nil {
		return err
	}
	var found bool
	err = d.run(chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return chromedp.CallFunctionOn(selectByText, &found,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			visibleText,
		).Do(ctx)
	}))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("option %q not found in %s", visibleText, sel)
	}
	return nil
}

// Text returns the visible text of the first element matching sel.
func (d *Driver) Text(sel core.Selector) (string, error) {
	n, err := d.first(sel)
	if err != nil {
		return "", err
	}
	var text string
	err = d.run(chromedp.Text(ids(n), &text, chromedp.ByNodeID))
	return text, err
}

// Texts returns the visible text of every element matching sel.
func (d *Driver) Texts(sel core.Selector) ([]string, error) {
	nodes, err := d.nodes(sel)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		if err := d.run(chromedp.Text(ids(n), &texts[i], chromedp.ByNodeID)); err != nil {
			return nil, err
		}
	}
	return texts, nil
}

// ClickAll clicks every element matching sel.
func (d *Driver) ClickAll(sel core.Selector) (int, error) {
	nodes, err := d.nodes(sel)
	if err != nil {
		return 0, err
	}
	for i, n := range nodes {
		if err := d.run(chromedp.MouseClickNode(n)); err != nil {
			return i, err
		}
	}
	return len(nodes), nil
}

// TypeAll clears every element matching sel and types text into each.
func (d *Driver) TypeAll(sel core.Selector, text string) (int, error) {
	nodes, err := d.nodes(sel)
	if err != nil {
		return 0, err
	}
	for i, n := range nodes {
		if err := d.typeInto(n, text); err != nil {
			return i, err
		}
	}
	return len(nodes), nil
}

// Attributes returns the named attribute of every element matching sel.
func (d *Driver) Attributes(sel core.Selector, name string) ([]string, error) {
	nodes, err := d.nodes(sel)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(nodes))
	for i, n := range nodes {
		values[i] = n.AttributeValue(name)
	}
	return values, nil
}

// Displayed reports whether the first element matching sel has a layout box.
func (d *Driver) Displayed(sel core.Selector) (bool, error) {
	nodes, err := d.nodes(sel)
	if err != nil || len(nodes) == 0 {
		return false, err
	}
	err = d.run(chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
		return err
	}))
	return err == nil, nil
}

// SwitchToNewWindow attaches to the first page target not yet focused.
func (d *Driver) SwitchToNewWindow() (string, error) {
	targets, err := chromedp.Targets(d.root.ctx)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	known := make(map[target.ID]bool, len(d.tabs))
	for _, t := range d.tabs {
		known[t.id] = true
	}
	parent := d.tabs[len(d.tabs)-1]
	for _, info := range targets {
		if info.Type != "page" || known[info.TargetID] {
			continue
		}
		ctx, cancel := chromedp.NewContext(d.root.ctx, chromedp.WithTargetID(info.TargetID))
		d.tabs = append(d.tabs, &tab{id: info.TargetID, ctx: ctx, cancel: cancel})
		return string(parent.id), nil
	}
	return "", fmt.Errorf("no window other than %s is open", parent.id)
}

// CloseWindow closes the focused tab and focuses handle.
func (d *Driver) CloseWindow(handle string) error {
	cur := d.current()
	if cur == d.root {
		return errors.New("cannot close the main window")
	}
	closeErr := chromedp.Run(cur.ctx, page.Close())
	cur.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs = d.tabs[:len(d.tabs)-1]
	for i, t := range d.tabs {
		if string(t.id) == handle {
			// Move the requested tab to the top of the focus stack.
			d.tabs = append(append(d.tabs[:i:i], d.tabs[i+1:]...), t)
			return closeErr
		}
	}
	return fmt.Errorf("no window %q to return to", handle)
}

// Screenshot captures the focused tab as PNG.
func (d *Driver) Screenshot() ([]byte, error) {
	var buf []byte
	err := d.run(chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Quit closes every tab and the browser.
func (d *Driver) Quit() error {
	d.mu.Lock()
	tabs := d.tabs
	d.tabs = []*tab{d.root}
	d.mu.Unlock()

	for i := len(tabs) - 1; i > 0; i-- {
		tabs[i].cancel()
	}
	err := chromedp.Cancel(d.root.ctx)
	d.shutdown()
	return err
}

func (d *Driver) shutdown() {
	d.root.cancel()
	d.allocCancel()
}

// BrowserInfo returns information captured at launch.
func (d *Driver) BrowserInfo() *core.BrowserInfo {
	return d.info
}
