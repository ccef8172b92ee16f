package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/pages"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// checkout signs in, empties the cart, configures one product, places the order
// and checks the order details against what was asked for.
type checkout struct {
	env       Env
	configure func(ctx context.Context, p pages.Product, params map[string]string) error
}

func newComputerCheckout(env Env) *checkout {
	return &checkout{env: env, configure: func(ctx context.Context, p pages.Product, params map[string]string) error {
		return p.Configure(ctx, pages.Computer{
			Processor: params["processor"],
			RAM:       params["RAM"],
			HDD:       params["HDD"],
			OS:        params["OS"],
			Software:  params["software"],
		})
	}}
}

func newGiftCardCheckout(env Env) *checkout {
	return &checkout{env: env, configure: func(ctx context.Context, p pages.Product, params map[string]string) error {
		return p.FillGiftCard(ctx, pages.GiftCard{
			RecipientName:  params["recipientName"],
			RecipientEmail: params["recipientEmail"],
			SenderName:     params["senderName"],
			SenderEmail:    params["senderEmail"],
			Message:        params["message"],
		})
	}}
}

func (c *checkout) Run(ctx context.Context, s *session.Session, params map[string]string) error {
	p := c.env.page(s)
	if err := c.env.open(p); err != nil {
		return err
	}
	if err := signIn(ctx, p, param(params, "email", c.env.Email), param(params, "password", c.env.Password)); err != nil {
		return err
	}

	cart := pages.Cart{Page: p}
	if err := p.Click(ctx, pages.CartLink); err != nil {
		return err
	}
	if err := cart.Clear(ctx); err != nil {
		return err
	}

	if err := c.addToCart(ctx, s, p, params); err != nil {
		return err
	}
	if err := cart.Checkout(ctx); err != nil {
		return err
	}

	shipping := param(params, "shippingMethod", pages.NotApplicable)
	payment := pages.Payment{
		Method:     params["paymentMethod"],
		CardType:   params["cardType"],
		HolderName: params["holderName"],
		CardNumber: params["cardNumber"],
		Expiry:     params["expirationDate"],
		Code:       params["code"],
		PONumber:   params["poNumber"],
	}
	co := pages.Checkout{Page: p}
	if err := co.BillingAddress(ctx); err != nil {
		return err
	}
	if err := co.Shipping(ctx, shipping); err != nil {
		return err
	}
	if err := co.Pay(ctx, payment); err != nil {
		return err
	}
	number, err := co.Confirm(ctx)
	if err != nil {
		return err
	}
	s.Entry.Log(core.SeverityInfo, "placed order "+number, core.ArtifactRef{})

	details, err := pages.Orders{Page: p}.Details(ctx)
	if err != nil {
		return err
	}
	if err := verifyOrder(details, params["quantity"], shipping, payment.Method, number); err != nil {
		return err
	}
	c.env.snapshot(s, params["Test_Case"])
	return pages.Home{Page: p}.Logout(ctx)
}

func (c *checkout) addToCart(ctx context.Context, s *session.Session, p *pages.Page, params map[string]string) error {
	landing := pages.Landing{Page: p}
	if err := landing.Search(ctx, params["product"]); err != nil {
		return err
	}
	if err := landing.OpenProduct(ctx); err != nil {
		return err
	}

	product := pages.Product{Page: p}
	if err := c.configure(ctx, product, params); err != nil {
		return err
	}
	if err := product.SetQuantity(ctx, params["quantity"]); err != nil {
		return err
	}
	c.env.snapshot(s, params["Test_Case"])

	banner, err := product.AddToCart(ctx)
	if err != nil {
		return err
	}
	s.Entry.Log(core.SeverityInfo, banner, core.ArtifactRef{})
	if err := landing.CloseBanner(ctx); err != nil {
		return err
	}
	return p.Click(ctx, pages.CartLink)
}

// verifyOrder checks the order details page against the placed order.
func verifyOrder(d pages.Details, quantity, shipping, payment, number string) error {
	if d.CartTotal != d.OrderTotal {
		return pages.Mismatch("order total", d.CartTotal, d.OrderTotal)
	}
	if d.Quantity != strings.TrimSpace(quantity) {
		return pages.Mismatch("ordered quantity", quantity, d.Quantity)
	}
	if !strings.EqualFold(shipping, pages.NotApplicable) && !containsFold(d.ShippingMethod, shipping) {
		return core.ErrTextMismatch.WithMessage(fmt.Sprintf("shipping method %q does not contain %q", d.ShippingMethod, shipping))
	}
	if !containsFold(d.PaymentMethod, payment) {
		return core.ErrTextMismatch.WithMessage(fmt.Sprintf("payment method %q does not contain %q", d.PaymentMethod, payment))
	}
	if d.Number != number {
		return pages.Mismatch("order number", number, d.Number)
	}
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
