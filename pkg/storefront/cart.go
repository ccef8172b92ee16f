package storefront

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/pages"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// shoppingCart adds the "|"-separated products to the cart, checks quantities,
// terms, shipping estimate and the checkout warning, then empties the cart.
type shoppingCart struct {
	env Env
}

func (c *shoppingCart) Run(ctx context.Context, s *session.Session, params map[string]string) error {
	p := c.env.page(s)
	if err := c.env.open(p); err != nil {
		return err
	}
	label := params["Test_Case"]

	if err := c.addProducts(ctx, s, p, params); err != nil {
		return err
	}
	c.env.snapshot(s, label)

	cart := pages.Cart{Page: p}
	if err := c.updateQuantity(ctx, cart, params["quantity"]); err != nil {
		return err
	}

	heading, body, err := cart.ReadTerms(ctx)
	if err != nil {
		return err
	}
	if heading != params["termsHeading"] {
		return pages.Mismatch("terms heading", params["termsHeading"], heading)
	}
	if body != params["termsDetails"] {
		return pages.Mismatch("terms body", params["termsDetails"], body)
	}

	shown, err := cart.EstimateShipping(ctx, params["country"], params["state"], params["zipCode"])
	if err != nil {
		return err
	}
	if err := pages.Check(shown, "shipping estimate was not displayed"); err != nil {
		return err
	}
	c.env.snapshot(s, label)

	warnHeading, warning, err := cart.CheckoutWithoutTerms(ctx)
	if err != nil {
		return err
	}
	if warnHeading != params["tcWarningHeading"] {
		return pages.Mismatch("terms warning heading", params["tcWarningHeading"], warnHeading)
	}
	if warning != params["tcWarningContent"] {
		return pages.Mismatch("terms warning", params["tcWarningContent"], warning)
	}

	if err := c.empty(ctx, cart); err != nil {
		return err
	}
	if err := p.ExpectText(ctx, pages.EmptyCartMessage, params["emptyMessage"], "empty cart message"); err != nil {
		return err
	}
	c.env.snapshot(s, label)
	return nil
}

func (c *shoppingCart) addProducts(ctx context.Context, s *session.Session, p *pages.Page, params map[string]string) error {
	landing := pages.Landing{Page: p}
	for _, product := range strings.Split(params["product"], "|") {
		product = strings.TrimSpace(product)
		if product == "" {
			continue
		}
		s.Entry.Log(core.SeverityInfo, "searching for "+product, core.ArtifactRef{})
		if err := landing.Search(ctx, product); err != nil {
			return err
		}
		results, err := landing.Results()
		if err != nil {
			return err
		}
		for _, item := range results {
			if !strings.Contains(strings.ToLower(item), strings.ToLower(product)) {
				return core.ErrScenarioFailed.
					WithMessage(fmt.Sprintf("search fetched a product %q which did not contain %q", item, product))
			}
		}

		banner, err := landing.AddToCart(ctx)
		if err != nil {
			return err
		}
		if banner != params["message"] {
			return pages.Mismatch(product+" add to cart message", params["message"], banner)
		}
		if err := landing.CloseBanner(ctx); err != nil {
			return err
		}
	}
	return p.Click(ctx, pages.CartLink)
}

// updateQuantity sets quantity and checks sub-total and total follow.
func (c *shoppingCart) updateQuantity(ctx context.Context, cart pages.Cart, quantity string) error {
	qty, err := strconv.Atoi(strings.TrimSpace(quantity))
	if err != nil {
		return core.ErrScenarioFailed.WithMessage(fmt.Sprintf("quantity %q is not a number", quantity))
	}
	before, err := cart.SubTotal(ctx)
	if err != nil {
		return err
	}
	if err := cart.SetQuantity(ctx, strconv.Itoa(qty)); err != nil {
		return err
	}
	after, err := cart.SubTotal(ctx)
	if err != nil {
		return err
	}
	if !sameAmount(after, before*float64(qty)) {
		return core.ErrScenarioFailed.WithMessage(fmt.Sprintf("sub-total was not updated correctly: expected %.2f, got %.2f", before*float64(qty), after))
	}
	total, err := cart.Total(ctx)
	if err != nil {
		return err
	}
	if !sameAmount(total, after) {
		return core.ErrScenarioFailed.WithMessage(fmt.Sprintf("total %.2f did not match sub-total %.2f", total, after))
	}
	return nil
}

func (c *shoppingCart) empty(ctx context.Context, cart pages.Cart) error {
	if zero, _ := cart.Driver.Displayed(pages.EmptyCartQuantity); !zero {
		if err := cart.RemoveAll(ctx); err != nil {
			return err
		}
	}
	if err := pages.Check(cart.IsDisplayed(ctx, pages.EmptyCartStep), "cart was not empty after removing all items"); err != nil {
		return err
	}
	return pages.Check(cart.IsDisplayed(ctx, pages.EmptyCartQuantity), "cart quantity was not zero after removing all items")
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
