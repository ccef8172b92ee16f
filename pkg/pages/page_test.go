package pages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
)

func newPage(d *mock.Driver) *Page {
	p := New(d, 100*time.Millisecond)
	p.Poll = 10 * time.Millisecond
	return p
}

func TestWaitVisible(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		LoginLink.String():  {},
		LogoutLink.String(): {Hidden: true},
	}})
	p := newPage(d)
	ctx := context.Background()

	require.NoError(t, p.WaitVisible(ctx, LoginLink))

	err := p.WaitVisible(ctx, LogoutLink)
	require.ErrorIs(t, err, core.ErrElementNotVisible)
	assert.Contains(t, err.Error(), LogoutLink.String())
	assert.False(t, p.IsDisplayed(ctx, core.ID("missing")))
}

func TestWaitVisibleAppearsLater(t *testing.T) {
	d := mock.New(mock.Config{})
	p := newPage(d)
	p.Timeout = time.Second

	go func() {
		time.Sleep(30 * time.Millisecond)
		d.SetElement(ShippingResults, mock.Element{Text: "Ground (0.00)"})
	}()
	text, err := p.Text(context.Background(), ShippingResults)
	require.NoError(t, err)
	assert.Equal(t, "Ground (0.00)", text)
}

func TestWaitVisibleCancelled(t *testing.T) {
	p := newPage(mock.New(mock.Config{}))
	p.Timeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.WaitVisible(ctx, LoginLink))
}

func TestClickTypeSelect(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		LoginLink.String():     {},
		EmailInput.String():    {},
		CountrySelect.String(): {},
	}})
	p := newPage(d)
	ctx := context.Background()

	require.NoError(t, p.Click(ctx, LoginLink))
	require.NoError(t, p.Type(ctx, EmailInput, "shopper@example.com"))
	require.NoError(t, p.Select(ctx, CountrySelect, "United States"))

	assert.Equal(t, []core.Selector{LoginLink}, d.Clicks())
	assert.Equal(t, "shopper@example.com", d.Typed(EmailInput))
	assert.Equal(t, "United States", d.Selected(CountrySelect))

	assert.ErrorIs(t, p.Click(ctx, CheckoutButton), core.ErrElementNotVisible)
}

func TestDriverErrorsAreCommandErrors(t *testing.T) {
	d := mock.New(mock.Config{
		FailOnCommand: 1,
		Elements:      map[string]mock.Element{LoginLink.String(): {}},
	})
	p := newPage(d)
	err := p.Open("https://shop.test/")
	require.ErrorIs(t, err, core.ErrDriverCommand)
	assert.True(t, core.IsCategory(err, core.ErrCategoryDriver))
}

func TestExpectText(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		NotificationText.String(): {Text: " The product has been added to your shopping cart "},
	}})
	p := newPage(d)
	ctx := context.Background()

	require.NoError(t, p.ExpectText(ctx, NotificationText, "The product has been added to your shopping cart", "banner"))

	err := p.ExpectText(ctx, NotificationText, "Out of stock", "banner")
	require.ErrorIs(t, err, core.ErrTextMismatch)
	assert.Contains(t, err.Error(), "banner did not match")
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(true, "unused"))
	err := Check(false, "cart had %d items", 2)
	require.ErrorIs(t, err, core.ErrScenarioFailed)
	assert.Equal(t, "cart had 2 items", err.Error())
}

func TestDigitsAndAmount(t *testing.T) {
	assert.Equal(t, "1234", Digits(" Order #1234 "))
	assert.Equal(t, "", Digits("none"))
	assert.Equal(t, 1810.0, Amount("1,810.00"))
	assert.Equal(t, 0.0, Amount("n/a"))
}
