package pages

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// Storefront locators.
var (
	LoginLink   = core.LinkText("Log in")
	LogoutLink  = core.LinkText("Log out")
	AccountLink = core.Class("account")
	FooterLinks = core.CSS(".footer-menu-wrapper ul>li>a")
	HeaderLogo  = core.Class("header-logo")

	EmailInput    = core.Name("Email")
	PasswordInput = core.Name("Password")
	LoginButton   = core.CSS("input[value='Log in']")

	SearchInput         = core.Name("q")
	AdvancedSearchInput = core.Name("Q")
	SearchButton        = core.XPath("//input[@value='Search']")
	ProductTitles       = core.CSS("[class='product-title']>a")
	AddToCartButton     = core.CSS(".product-box-add-to-cart-button")
	NotificationText    = core.CSS("#bar-notification p.content")
	NotificationClose   = core.CSS(".close")
	CartLink            = core.Class("ico-cart")

	UpdateCartButton    = core.Name("updatecart")
	RemoveCheckboxes    = core.Name("removefromcart")
	QuantityInputs      = core.CSS(".qty-input")
	ReadTermsLink       = core.CSS("span.read")
	TermsCheckbox       = core.ID("termsofservice")
	CheckoutButton      = core.ID("checkout")
	TermsHeading        = core.CSS(".page-title>h1")
	TermsBody           = core.CSS(".page-body>p")
	SubTotalText        = core.CSS("span.product-price")
	TotalText           = core.CSS(".order-total")
	EmptyCartMessage    = core.CSS(".order-summary-content")
	EmptyCartStep       = core.CSS(".active-step")
	EmptyCartQuantity   = core.XPath("//span[@class='cart-qty'][text()='(0)']")
	CountrySelect       = core.ID("CountryId")
	StateSelect         = core.ID("StateProvinceId")
	ZipInput            = core.ID("ZipPostalCode")
	EstimateButton      = core.Name("estimateshipping")
	ShippingResults     = core.Class("shipping-results")
	TermsWarning        = core.ID("terms-of-service-warning-box")
	TermsWarningHeading = core.Class("ui-dialog-title")
	TermsWarningClose   = core.CSS(".ui-dialog-titlebar-close")

	OrdersLink               = core.LinkText("Orders")
	DownloadableProductsLink = core.LinkText("Downloadable products")
	MyOrderNumber            = core.CSS(".order-item>.title>strong")
	MyOrderStatus            = core.CSS(".order-item>.info>li")
	MyOrderTotal             = core.CSS(".order-item>.info>li:nth-child(3)")
	OrderDetailsButton       = core.CSS(".order-details-button")
	DownloadableOrderLink    = core.CSS("td.order>a")
	OrderNumberText          = core.Class("order-number")
	OrderStatusText          = core.CSS(".order-details>span:nth-child(2)")
	OrderTotalText           = core.CSS(".order-total>strong")
	CartTotalText            = core.CSS(".cart-total-right strong")
	PaymentMethodText        = core.Class("payment-method")
	ShippingMethodText       = core.Class("shipping-method")
	QuantityText             = core.CSS("td.a-center.quantity")
	PDFInvoiceButton         = core.CSS(".pdf-order-button")
)

// UserEmail locates the account header showing email.
func UserEmail(email string) core.Selector {
	return core.XPath(fmt.Sprintf("//*[text()='%s']", email))
}

// Home is the storefront header and footer.
type Home struct{ *Page }

// Link is a footer link.
type Link struct {
	Text string
	Href string
}

// FooterLinks returns every footer link with its href.
func (h Home) FooterLinks() ([]Link, error) {
	texts, err := h.Texts(FooterLinks)
	if err != nil {
		return nil, err
	}
	hrefs, err := h.Attributes(FooterLinks, "href")
	if err != nil {
		return nil, err
	}
	links := make([]Link, len(hrefs))
	for i, href := range hrefs {
		links[i].Href = href
		if i < len(texts) {
			links[i].Text = texts[i]
		}
	}
	return links, nil
}

// Logout clicks "Log out" and waits for "Log in" to come back.
func (h Home) Logout(ctx context.Context) error {
	if err := h.Click(ctx, LogoutLink); err != nil {
		return err
	}
	return Check(h.IsDisplayed(ctx, LoginLink), "user was not logged out")
}

// Login is the sign-in form.
type Login struct{ *Page }

// SignIn fills and submits the form, then waits for the account header to show email.
func (l Login) SignIn(ctx context.Context, email, password string) error {
	if err := l.Type(ctx, EmailInput, email); err != nil {
		return err
	}
	if err := l.Type(ctx, PasswordInput, password); err != nil {
		return err
	}
	if err := l.Click(ctx, LoginButton); err != nil {
		return err
	}
	return Check(l.IsDisplayed(ctx, UserEmail(email)), "user login failed for %s", email)
}

// Landing is the search and product listing page.
type Landing struct{ *Page }

// Search searches for product and waits for the advanced search form of the results page.
func (l Landing) Search(ctx context.Context, product string) error {
	if err := l.Type(ctx, SearchInput, product); err != nil {
		return err
	}
	if err := l.Click(ctx, SearchButton); err != nil {
		return err
	}
	return Check(l.IsDisplayed(ctx, AdvancedSearchInput), "advanced search was not displayed")
}

// Results returns the titles of the listed products.
func (l Landing) Results() ([]string, error) {
	return l.Texts(ProductTitles)
}

// AddToCart adds the first listed product and returns the notification banner text.
func (l Landing) AddToCart(ctx context.Context) (string, error) {
	if err := l.Click(ctx, AddToCartButton); err != nil {
		return "", err
	}
	return l.Text(ctx, NotificationText)
}

// OpenProduct clicks the first listed product's add to cart button, which opens the
// details page of products that need configuring.
func (l Landing) OpenProduct(ctx context.Context) error {
	if err := l.Click(ctx, AddToCartButton); err != nil {
		return err
	}
	return l.WaitVisible(ctx, ProductAddToCart)
}

// CloseBanner dismisses the notification and returns to the home page.
func (l Landing) CloseBanner(ctx context.Context) error {
	if err := l.Click(ctx, NotificationClose); err != nil {
		return err
	}
	if err := l.WaitGone(ctx, NotificationClose); err != nil {
		return core.ErrElementNotVisible.WithMessage("notification banner did not close").WithCause(err)
	}
	return l.Click(ctx, HeaderLogo)
}

// Cart is the shopping cart page.
type Cart struct{ *Page }

// SubTotal returns the product sub-total.
func (c Cart) SubTotal(ctx context.Context) (float64, error) {
	text, err := c.Text(ctx, SubTotalText)
	return Amount(text), err
}

// Total returns the order total.
func (c Cart) Total(ctx context.Context) (float64, error) {
	text, err := c.Text(ctx, TotalText)
	return Amount(text), err
}

// SetQuantity types quantity into every line item and submits the cart.
func (c Cart) SetQuantity(ctx context.Context, quantity string) error {
	if err := c.WaitVisible(ctx, QuantityInputs); err != nil {
		return err
	}
	if _, err := c.Driver.TypeAll(QuantityInputs, quantity); err != nil {
		return core.ErrDriverCommand.WithMessage("update quantities").WithCause(err)
	}
	return c.Click(ctx, UpdateCartButton)
}

// RemoveAll ticks every remove checkbox and submits the cart.
func (c Cart) RemoveAll(ctx context.Context) error {
	if _, err := c.Driver.ClickAll(RemoveCheckboxes); err != nil {
		return core.ErrDriverCommand.WithMessage("tick remove checkboxes").WithCause(err)
	}
	return c.Click(ctx, UpdateCartButton)
}

// Clear removes every line item, if there are any.
func (c Cart) Clear(ctx context.Context) error {
	if shown, _ := c.Driver.Displayed(RemoveCheckboxes); !shown {
		return nil
	}
	return c.RemoveAll(ctx)
}

// Checkout accepts the terms of service and starts checkout.
func (c Cart) Checkout(ctx context.Context) error {
	if err := c.Click(ctx, TermsCheckbox); err != nil {
		return err
	}
	if err := c.Click(ctx, CheckoutButton); err != nil {
		return err
	}
	return c.WaitVisible(ctx, BillingAddressSelect)
}

// ReadTerms opens the terms popup and returns its heading and body.
func (c Cart) ReadTerms(ctx context.Context) (heading, body string, err error) {
	if err = c.Click(ctx, ReadTermsLink); err != nil {
		return "", "", err
	}
	parent, err := c.Driver.SwitchToNewWindow()
	if err != nil {
		return "", "", core.ErrDriverCommand.WithMessage("switch to terms window").WithCause(err)
	}
	defer func() {
		if cerr := c.Driver.CloseWindow(parent); cerr != nil && err == nil {
			err = core.ErrDriverCommand.WithMessage("close terms window").WithCause(cerr)
		}
	}()

	if heading, err = c.Text(ctx, TermsHeading); err != nil {
		return "", "", err
	}
	if body, err = c.Text(ctx, TermsBody); err != nil {
		return "", "", err
	}
	return heading, body, nil
}

// EstimateShipping fills the estimate form and reports whether results showed up.
func (c Cart) EstimateShipping(ctx context.Context, country, state, zip string) (bool, error) {
	if err := c.Select(ctx, CountrySelect, country); err != nil {
		return false, err
	}
	if err := c.Select(ctx, StateSelect, state); err != nil {
		return false, err
	}
	if err := c.Type(ctx, ZipInput, zip); err != nil {
		return false, err
	}
	if err := c.Click(ctx, EstimateButton); err != nil {
		return false, err
	}
	return c.IsDisplayed(ctx, ShippingResults), nil
}

// CheckoutWithoutTerms clicks checkout and returns the warning dialog's heading and text, closing it.
func (c Cart) CheckoutWithoutTerms(ctx context.Context) (heading, warning string, err error) {
	if err = c.Click(ctx, CheckoutButton); err != nil {
		return "", "", err
	}
	if heading, err = c.Text(ctx, TermsWarningHeading); err != nil {
		return "", "", err
	}
	if warning, err = c.Text(ctx, TermsWarning); err != nil {
		return "", "", err
	}
	return heading, warning, c.Click(ctx, TermsWarningClose)
}

// Orders is the customer's order history and order details.
type Orders struct{ *Page }

// Summary is what the order list shows for the latest order.
type Summary struct {
	Number string
	Status string
	Total  string
}

// OpenLatest opens the latest order from "Orders" and returns its list summary.
func (o Orders) OpenLatest(ctx context.Context) (Summary, error) {
	var s Summary
	if err := o.Click(ctx, OrdersLink); err != nil {
		return s, err
	}
	number, err := o.Text(ctx, MyOrderNumber)
	if err != nil {
		return s, err
	}
	s.Number = Digits(number)
	if s.Status, err = o.Text(ctx, MyOrderStatus); err != nil {
		return s, err
	}
	if s.Total, err = o.Text(ctx, MyOrderTotal); err != nil {
		return s, err
	}
	return s, o.Click(ctx, OrderDetailsButton)
}

// OpenDownloadable opens the order of the first downloadable product and returns its number.
func (o Orders) OpenDownloadable(ctx context.Context) (string, error) {
	if err := o.Click(ctx, DownloadableProductsLink); err != nil {
		return "", err
	}
	number, err := o.Text(ctx, DownloadableOrderLink)
	if err != nil {
		return "", err
	}
	return Digits(number), o.Click(ctx, DownloadableOrderLink)
}

// Details is what the order details page shows.
type Details struct {
	Number        string
	Status        string
	OrderTotal    string
	CartTotal     string
	PaymentMethod string
	Quantity      string

	// ShippingMethod is empty for orders without shipping
	ShippingMethod string
}

// Details reads the order details page.
func (o Orders) Details(ctx context.Context) (Details, error) {
	var d Details
	fields := []struct {
		sel core.Selector
		dst *string
	}{
		{OrderNumberText, &d.Number},
		{OrderStatusText, &d.Status},
		{OrderTotalText, &d.OrderTotal},
		{CartTotalText, &d.CartTotal},
		{PaymentMethodText, &d.PaymentMethod},
		{QuantityText, &d.Quantity},
	}
	for _, f := range fields {
		text, err := o.Text(ctx, f.sel)
		if err != nil {
			return d, err
		}
		*f.dst = text
	}
	d.Number = Digits(d.Number)
	if shown, _ := o.Driver.Displayed(ShippingMethodText); shown {
		text, err := o.Text(ctx, ShippingMethodText)
		if err != nil {
			return d, err
		}
		d.ShippingMethod = text
	}
	return d, nil
}
