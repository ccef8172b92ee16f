// Package pages provides explicit-wait browser primitives and the storefront page objects built on them.
package pages

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// DefaultPoll is the interval between visibility checks.
const DefaultPoll = 250 * time.Millisecond

// Page wraps a driver with explicit waits. Every element interaction first waits
// up to the configured timeout for the element to be displayed.
type Page struct {
	Driver  core.Driver
	Timeout time.Duration
	Poll    time.Duration
}

// New creates a Page over d with the given explicit wait.
func New(d core.Driver, timeout time.Duration) *Page {
	return &Page{Driver: d, Timeout: timeout, Poll: DefaultPoll}
}

func (p *Page) policy(ctx context.Context) backoff.BackOffContext {
	poll := p.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(poll), uint64(p.Timeout/poll)), ctx)
}

// Until polls cond until it returns nil or the wait expires; the last error is returned.
func (p *Page) Until(ctx context.Context, cond func() error) error {
	return backoff.Retry(cond, p.policy(ctx))
}

// WaitVisible waits until sel is displayed.
func (p *Page) WaitVisible(ctx context.Context, sel core.Selector) error {
	err := p.Until(ctx, func() error {
		shown, err := p.Driver.Displayed(sel)
		if err != nil {
			return err
		}
		if !shown {
			return fmt.Errorf("%s not displayed", sel)
		}
		return nil
	})
	if err != nil {
		return core.ErrElementNotVisible.
			WithMessage(fmt.Sprintf("%s was not visible within %s", sel, p.Timeout)).
			WithCause(err)
	}
	return nil
}

// WaitGone waits until sel is no longer displayed.
func (p *Page) WaitGone(ctx context.Context, sel core.Selector) error {
	return p.Until(ctx, func() error {
		shown, err := p.Driver.Displayed(sel)
		if err != nil {
			return err
		}
		if shown {
			return fmt.Errorf("%s still displayed", sel)
		}
		return nil
	})
}

// IsDisplayed waits for sel and reports whether it showed up.
func (p *Page) IsDisplayed(ctx context.Context, sel core.Selector) bool {
	return p.WaitVisible(ctx, sel) == nil
}

// Open navigates to url.
func (p *Page) Open(url string) error {
	if err := p.Driver.Navigate(url); err != nil {
		return core.ErrDriverCommand.WithMessage("navigate to " + url).WithCause(err)
	}
	return nil
}

// Click waits for sel and clicks it.
func (p *Page) Click(ctx context.Context, sel core.Selector) error {
	if err := p.WaitVisible(ctx, sel); err != nil {
		return err
	}
	if err := p.Driver.Click(sel); err != nil {
		return core.ErrDriverCommand.WithMessage("click " + sel.String()).WithCause(err)
	}
	return nil
}

// Type waits for sel, clears it and types text.
func (p *Page) Type(ctx context.Context, sel core.Selector, text string) error {
	if err := p.WaitVisible(ctx, sel); err != nil {
		return err
	}
	if err := p.Driver.Type(sel, text); err != nil {
		return core.ErrDriverCommand.WithMessage("type into " + sel.String()).WithCause(err)
	}
	return nil
}

// Select waits for the dropdown sel and picks the option with visible text.
func (p *Page) Select(ctx context.Context, sel core.Selector, text string) error {
	if err := p.WaitVisible(ctx, sel); err != nil {
		return err
	}
	if err := p.Driver.Select(sel, text); err != nil {
		return core.ErrDriverCommand.WithMessage(fmt.Sprintf("select %q in %s", text, sel)).WithCause(err)
	}
	return nil
}

// Text waits for sel and returns its trimmed text.
func (p *Page) Text(ctx context.Context, sel core.Selector) (string, error) {
	if err := p.WaitVisible(ctx, sel); err != nil {
		return "", err
	}
	text, err := p.Driver.Text(sel)
	if err != nil {
		return "", core.ErrDriverCommand.WithMessage("read text of " + sel.String()).WithCause(err)
	}
	return strings.TrimSpace(text), nil
}

// Texts returns the trimmed text of every element matching sel. No match is an empty slice.
func (p *Page) Texts(sel core.Selector) ([]string, error) {
	texts, err := p.Driver.Texts(sel)
	if err != nil {
		return nil, core.ErrDriverCommand.WithMessage("read texts of " + sel.String()).WithCause(err)
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, nil
}

// Attributes returns the named attribute of every element matching sel.
func (p *Page) Attributes(sel core.Selector, name string) ([]string, error) {
	values, err := p.Driver.Attributes(sel, name)
	if err != nil {
		return nil, core.ErrDriverCommand.WithMessage(fmt.Sprintf("read %s of %s", name, sel)).WithCause(err)
	}
	return values, nil
}

// ExpectText fails with ErrTextMismatch unless the text of sel equals want.
func (p *Page) ExpectText(ctx context.Context, sel core.Selector, want, what string) error {
	got, err := p.Text(ctx, sel)
	if err != nil {
		return err
	}
	if got != strings.TrimSpace(want) {
		return Mismatch(what, want, got)
	}
	return nil
}

// Mismatch builds the error for an unexpected value.
func Mismatch(what, want, got string) error {
	return core.ErrTextMismatch.
		WithMessage(fmt.Sprintf("%s did not match: expected %q, got %q", what, want, got)).
		WithDetails(map[string]interface{}{"expected": want, "actual": got})
}

// Check returns a scenario failure carrying msg when ok is false.
func Check(ok bool, format string, args ...interface{}) error {
	if ok {
		return nil
	}
	return core.ErrScenarioFailed.WithMessage(fmt.Sprintf(format, args...))
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// Digits strips everything but digits, turning "Order #1234" into "1234".
func Digits(text string) string {
	return nonDigit.ReplaceAllString(strings.TrimSpace(text), "")
}

// Amount parses a price cell such as "1,810.00"; unparsable text is 0.
func Amount(text string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
