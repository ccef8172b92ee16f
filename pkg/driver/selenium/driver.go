// Package selenium drives a browser through a Selenium server or a local
// WebDriver endpoint (chromedriver, geckodriver).
package selenium

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// DefaultRemoteURL is the Selenium standalone server address.
const DefaultRemoteURL = "http://127.0.0.1:4444/wd/hub"

// Options configures a WebDriver session.
type Options struct {
	RemoteURL    string
	Browser      string // chrome or firefox
	Headless     bool
	ImplicitWait time.Duration
	DownloadDir  string // where the browser saves files without prompting
}

// Driver implements core.Driver on top of a WebDriver session.
type Driver struct {
	wd   selenium.WebDriver
	info *core.BrowserInfo
}

// New starts a browser session.
func New(opts Options) (*Driver, error) {
	if opts.RemoteURL == "" {
		opts.RemoteURL = DefaultRemoteURL
	}
	caps, err := Capabilities(opts)
	if err != nil {
		return nil, err
	}
	wd, err := selenium.NewRemote(caps, opts.RemoteURL)
	if err != nil {
		return nil, fmt.Errorf("start %s session at %s: %w", opts.Browser, opts.RemoteURL, err)
	}

	if err := wd.SetImplicitWaitTimeout(opts.ImplicitWait); err != nil {
		_ = wd.Quit()
		return nil, fmt.Errorf("set implicit wait: %w", err)
	}
	// Headless windows cannot be maximized on every platform.
	_ = wd.MaximizeWindow("")

	d := &Driver{
		wd: wd,
		info: &core.BrowserInfo{
			Browser:   opts.Browser,
			SessionID: wd.SessionID(),
			Headless:  opts.Headless,
			Driver:    "selenium",
		},
	}
	if got, err := wd.Capabilities(); err == nil {
		if v, ok := got["browserVersion"].(string); ok {
			d.info.Version = v
		}
		if v, ok := got["platformName"].(string); ok {
			d.info.Platform = v
		}
	}
	return d, nil
}

// Factory returns a core.DriverFactory opening one session per call.
func Factory(opts Options) core.DriverFactory {
	return func(ctx context.Context) (core.Driver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(opts)
	}
}

// Capabilities builds the session capabilities for opts.Browser.
func Capabilities(opts Options) (selenium.Capabilities, error) {
	downloads := opts.DownloadDir
	if downloads != "" {
		abs, err := filepath.Abs(downloads)
		if err != nil {
			return nil, err
		}
		downloads = abs
	}

	switch strings.ToLower(opts.Browser) {
	case "", "chrome":
		caps := selenium.Capabilities{"browserName": "chrome"}
		args := []string{"--window-size=1920,1080", "--disable-gpu", "--no-sandbox"}
		if opts.Headless {
			args = append(args, "--headless=new")
		}
		prefs := map[string]interface{}{}
		if downloads != "" {
			prefs["download.default_directory"] = downloads
			prefs["download.prompt_for_download"] = false
			prefs["plugins.always_open_pdf_externally"] = true
		}
		caps.AddChrome(chrome.Capabilities{Args: args, Prefs: prefs, W3C: true})
		return caps, nil
	case "firefox":
		caps := selenium.Capabilities{"browserName": "firefox"}
		var args []string
		if opts.Headless {
			args = append(args, "-headless")
		}
		prefs := map[string]interface{}{}
		if downloads != "" {
			prefs["browser.download.folderList"] = 2
			prefs["browser.download.dir"] = downloads
			prefs["browser.helperApps.neverAsk.saveToDisk"] = "application/pdf"
			prefs["pdfjs.disabled"] = true
		}
		caps.AddFirefox(firefox.Capabilities{Args: args, Prefs: prefs})
		return caps, nil
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported browser %q", opts.Browser))
	}
}

// by maps a selector onto a W3C locator strategy. W3C only knows css, xpath
// and link text, so id, name and class become CSS.
func by(sel core.Selector) (string, string, error) {
	switch sel.By {
	case core.ByCSS:
		return selenium.ByCSSSelector, sel.Value, nil
	case core.ByXPath:
		return selenium.ByXPATH, sel.Value, nil
	case core.ByID:
		return selenium.ByCSSSelector, fmt.Sprintf("[id=%q]", sel.Value), nil
	case core.ByName:
		return selenium.ByCSSSelector, fmt.Sprintf("[name=%q]", sel.Value), nil
	case core.ByLinkText:
		return selenium.ByLinkText, sel.Value, nil
	case core.ByClass:
		return selenium.ByCSSSelector, "." + sel.Value, nil
	default:
		return "", "", fmt.Errorf("unsupported locator %q", sel.By)
	}
}

func (d *Driver) find(sel core.Selector) (selenium.WebElement, error) {
	strategy, value, err := by(sel)
	if err != nil {
		return nil, err
	}
	return d.wd.FindElement(strategy, value)
}

func (d *Driver) findAll(sel core.Selector) ([]selenium.WebElement, error) {
	strategy, value, err := by(sel)
	if err != nil {
		return nil, err
	}
	return d.wd.FindElements(strategy, value)
}

// Navigate loads url.
func (d *Driver) Navigate(url string) error {
	return d.wd.Get(url)
}

// CurrentURL returns the URL of the active page.
func (d *Driver) CurrentURL() (string, error) {
	return d.wd.CurrentURL()
}

// Title returns the title of the active page.
func (d *Driver) Title() (string, error) {
	return d.wd.Title()
}

// Click clicks the first element matching sel.
func (d *Driver) Click(sel core.Selector) error {
	el, err := d.find(sel)
	if err != nil {
		return err
	}
	return el.Click()
}

// Type clears the first element matching sel and types text.
func (d *Driver) Type(sel core.Selector, text string) error {
	el, err := d.find(sel)
	if err != nil {
		return err
	}
	return typeInto(el, text)
}

func typeInto(el selenium.WebElement, text string) error {
	if err := el.Clear(); err != nil {
		return err
	}
	return el.SendKeys(text)
}

// Select picks the option whose visible text is visibleText.
func (d *Driver) Select(sel core.Selector, visibleText string) error {
	el, err := d.find(sel)
	if err != nil {
		return err
	}
	option, err := el.FindElement(selenium.ByXPATH, ".//option[normalize-space(.)="+xpathLiteral(visibleText)+"]")
	if err != nil {
		return fmt.Errorf("option %q not found in %s: %w", visibleText, sel, err)
	}
	return option.Click()
}

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// Text returns the visible text of the first element matching sel.
func (d *Driver) Text(sel core.Selector) (string, error) {
	el, err := d.find(sel)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// Texts returns the visible text of every element matching sel.
func (d *Driver) Texts(sel core.Selector) ([]string, error) {
	els, err := d.findAll(sel)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// ClickAll clicks every element matching sel.
func (d *Driver) ClickAll(sel core.Selector) (int, error) {
	els, err := d.findAll(sel)
	if err != nil {
		return 0, err
	}
	for i, el := range els {
		if err := el.Click(); err != nil {
			return i, err
		}
	}
	return len(els), nil
}

// TypeAll clears every element matching sel and types text into each.
func (d *Driver) TypeAll(sel core.Selector, text string) (int, error) {
	els, err := d.findAll(sel)
	if err != nil {
		return 0, err
	}
	for i, el := range els {
		if err := typeInto(el, text); err != nil {
			return i, err
		}
	}
	return len(els), nil
}

// Attributes returns the named attribute of every element matching sel.
func (d *Driver) Attributes(sel core.Selector, name string) ([]string, error) {
	els, err := d.findAll(sel)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(els))
	for _, el := range els {
		v, err := el.GetAttribute(name)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Displayed reports whether the first element matching sel is visible.
// A missing element is not displayed.
func (d *Driver) Displayed(sel core.Selector) (bool, error) {
	els, err := d.findAll(sel)
	if err != nil {
		return false, err
	}
	if len(els) == 0 {
		return false, nil
	}
	return els[0].IsDisplayed()
}

// SwitchToNewWindow focuses the first window other than the current one.
func (d *Driver) SwitchToNewWindow() (string, error) {
	current, err := d.wd.CurrentWindowHandle()
	if err != nil {
		return "", err
	}
	handles, err := d.wd.WindowHandles()
	if err != nil {
		return "", err
	}
	for _, h := range handles {
		if h != current {
			return current, d.wd.SwitchWindow(h)
		}
	}
	return "", fmt.Errorf("no window other than %s is open", current)
}

// CloseWindow closes the current window and focuses handle.
func (d *Driver) CloseWindow(handle string) error {
	current, err := d.wd.CurrentWindowHandle()
	if err != nil {
		return err
	}
	if err := d.wd.CloseWindow(current); err != nil {
		return err
	}
	return d.wd.SwitchWindow(handle)
}

// Screenshot captures the current viewport as PNG.
func (d *Driver) Screenshot() ([]byte, error) {
	return d.wd.Screenshot()
}

// Quit ends the session and closes the browser.
func (d *Driver) Quit() error {
	return d.wd.Quit()
}

// BrowserInfo returns session information captured at start.
func (d *Driver) BrowserInfo() *core.BrowserInfo {
	return d.info
}
