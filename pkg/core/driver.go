package core

import (
	"context"
	"fmt"
)

// Driver defines the browser operations scenarios rely on.
// Implementations: selenium (WebDriver), cdp (Chrome DevTools), mock.
// A Driver is owned by exactly one session and never shared across workers.
type Driver interface {
	// Navigate loads the given URL
	Navigate(url string) error

	// CurrentURL returns the URL of the active page
	CurrentURL() (string, error)

	// Title returns the title of the active page
	Title() (string, error)

	// Click clicks the first element matching sel
	Click(sel Selector) error

	// Type clears the first element matching sel and types text into it
	Type(sel Selector, text string) error

	// Select picks the option with the given visible text in a <select>
	Select(sel Selector, visibleText string) error

	// Text returns the visible text of the first element matching sel
	Text(sel Selector) (string, error)

	// Texts returns the visible text of every element matching sel
	Texts(sel Selector) ([]string, error)

	// ClickAll clicks every element matching sel and returns how many were clicked
	ClickAll(sel Selector) (int, error)

	// TypeAll clears every element matching sel and types text into each
	TypeAll(sel Selector, text string) (int, error)

	// Attributes returns the named attribute of every element matching sel
	Attributes(sel Selector, name string) ([]string, error)

	// Displayed reports whether an element matching sel is visible
	Displayed(sel Selector) (bool, error)

	// SwitchToNewWindow focuses a window other than the current one and
	// returns the handle of the window it left
	SwitchToNewWindow() (string, error)

	// CloseWindow closes the current window and focuses handle
	CloseWindow(handle string) error

	// Screenshot captures the current viewport as PNG
	Screenshot() ([]byte, error)

	// Quit closes the browser session
	Quit() error

	// BrowserInfo returns browser/session information
	BrowserInfo() *BrowserInfo
}

// DriverFactory creates a fresh driver for one session.
type DriverFactory func(ctx context.Context) (Driver, error)

// Locator strategies
const (
	ByCSS      = "css"
	ByXPath    = "xpath"
	ByID       = "id"
	ByName     = "name"
	ByLinkText = "linkText"
	ByClass    = "class"
)

// Selector locates elements on a page
type Selector struct {
	By    string `json:"by"`
	Value string `json:"value"`
}

// String returns a human-readable representation
func (s Selector) String() string {
	return fmt.Sprintf("%s=%s", s.By, s.Value)
}

// CSS builds a CSS selector
func CSS(v string) Selector { return Selector{By: ByCSS, Value: v} }

// XPath builds an XPath selector
func XPath(v string) Selector { return Selector{By: ByXPath, Value: v} }

// ID builds an id selector
func ID(v string) Selector { return Selector{By: ByID, Value: v} }

// Name builds a name-attribute selector
func Name(v string) Selector { return Selector{By: ByName, Value: v} }

// LinkText builds a link-text selector
func LinkText(v string) Selector { return Selector{By: ByLinkText, Value: v} }

// Class builds a class-name selector
func Class(v string) Selector { return Selector{By: ByClass, Value: v} }

// BrowserInfo contains browser/session information
type BrowserInfo struct {
	Browser   string `json:"browser"`
	Version   string `json:"version,omitempty"`
	Platform  string `json:"platform,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Headless  bool   `json:"headless,omitempty"`
	Driver    string `json:"driver"` // selenium, cdp, mock
}
