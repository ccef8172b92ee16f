package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
)

func TestHomeFooterLinks(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		FooterLinks.String(): {
			Texts: []string{"Sitemap", "Shipping & Returns"},
			Attrs: map[string][]string{"href": {"https://shop.test/sitemap", "https://shop.test/shipping"}},
		},
	}})
	links, err := Home{newPage(d)}.FooterLinks()
	require.NoError(t, err)
	assert.Equal(t, []Link{
		{Text: "Sitemap", Href: "https://shop.test/sitemap"},
		{Text: "Shipping & Returns", Href: "https://shop.test/shipping"},
	}, links)
}

func TestLoginSignIn(t *testing.T) {
	const email = "shopper@example.com"
	d := mock.New(mock.Config{
		Elements: map[string]mock.Element{
			EmailInput.String():    {},
			PasswordInput.String(): {},
			LoginButton.String():   {},
		},
		OnClick: func(d *mock.Driver, sel core.Selector) error {
			if sel == LoginButton && d.Typed(PasswordInput) == "secret" {
				d.SetElement(UserEmail(email), mock.Element{Text: email})
			}
			return nil
		},
	})
	login := Login{newPage(d)}
	ctx := context.Background()

	err := login.SignIn(ctx, email, "wrong")
	require.ErrorIs(t, err, core.ErrScenarioFailed)

	require.NoError(t, login.SignIn(ctx, email, "secret"))
}

func TestCartReadTermsRestoresWindow(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		ReadTermsLink.String():  {},
		CheckoutButton.String(): {},
	}})
	d.OpenWindow(map[string]mock.Element{
		TermsHeading.String(): {Text: "Conditions of use"},
		TermsBody.String():    {Text: "Put your conditions of use information here."},
	})
	cart := Cart{newPage(d)}

	heading, body, err := cart.ReadTerms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Conditions of use", heading)
	assert.Equal(t, "Put your conditions of use information here.", body)
	assert.True(t, cart.IsDisplayed(context.Background(), CheckoutButton), "back on the cart window")
}

func TestOrdersDetails(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		OrderNumberText.String():   {Text: "Order #1234"},
		OrderStatusText.String():   {Text: "Pending"},
		OrderTotalText.String():    {Text: "1810.00"},
		CartTotalText.String():     {Text: "1810.00"},
		PaymentMethodText.String(): {Text: "Credit Card"},
		QuantityText.String():      {Text: "1"},
	}})
	got, err := Orders{newPage(d)}.Details(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Details{
		Number:        "1234",
		Status:        "Pending",
		OrderTotal:    "1810.00",
		CartTotal:     "1810.00",
		PaymentMethod: "Credit Card",
		Quantity:      "1",
	}, got)
}
