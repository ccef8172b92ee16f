package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// Product detail and checkout locators.
var (
	ProductAddToCart  = core.CSS(".add-to-cart-button")
	ProductQuantity   = core.CSS("input.qty-input")
	RecipientName     = core.Class("recipient-name")
	RecipientEmail    = core.Class("recipient-email")
	SenderName        = core.Class("sender-name")
	SenderEmail       = core.Class("sender-email")
	GiftCardMessage   = core.Class("message")
	ProcessorDropdown = core.XPath("//label[contains(text(),'Processor')]/../following-sibling::dd[1]//select")
	RAMDropdown       = core.XPath("//label[contains(text(),'RAM')]/../following-sibling::dd[1]//select")

	BillingAddressSelect   = core.Name("billing_address_id")
	BillingAddressOptions  = core.CSS("select[name='billing_address_id']>option")
	ShippingAddressSelect  = core.Name("shipping_address_id")
	ShippingAddressOptions = core.CSS("select[name='shipping_address_id']>option")
	PickUpInStore          = core.ID("PickUpInStore")
	BillingContinue        = core.XPath("//input[contains(@onclick,'Billing.save')]")
	ShippingContinue       = core.XPath("//input[contains(@onclick,'Shipping.save')]")
	ShippingMethodContinue = core.XPath("//input[contains(@onclick,'ShippingMethod.save')]")
	PaymentMethodContinue  = core.XPath("//input[contains(@onclick,'PaymentMethod.save')]")
	PaymentInfoContinue    = core.XPath("//input[contains(@onclick,'PaymentInfo.save')]")
	CreditCardType         = core.ID("CreditCardType")
	CardholderName         = core.ID("CardholderName")
	CardNumber             = core.ID("CardNumber")
	ExpireMonth            = core.ID("ExpireMonth")
	ExpireYear             = core.ID("ExpireYear")
	CardCode               = core.ID("CardCode")
	PurchaseOrderNumber    = core.ID("PurchaseOrderNumber")
	ConfirmOrderButton     = core.CSS(".confirm-order-next-step-button")
	ConfirmedOrderNumber   = core.CSS(".details>li")
	ConfirmedDetailsLink   = core.LinkText("Click here for order details.")
)

// Checkout choices with special handling.
const (
	NotApplicable        = "NA"
	ShippingInStore      = "STORE"
	PaymentCreditCard    = "Credit Card"
	PaymentPurchaseOrder = "Purchase Order"
)

func attributeOption(attribute, label string) core.Selector {
	return core.XPath(fmt.Sprintf("//label[contains(text(),'%s')]/../following-sibling::dd[1]//label[contains(text(),'%s')]", attribute, label))
}

// ProcessorOption locates the processor radio labelled label.
func ProcessorOption(label string) core.Selector { return attributeOption("Processor", label) }

// RAMOption locates the RAM radio labelled label.
func RAMOption(label string) core.Selector { return attributeOption("RAM", label) }

// HDDOption locates the HDD radio labelled label.
func HDDOption(label string) core.Selector { return attributeOption("HDD", label) }

// OSOption locates the operating system radio labelled label.
func OSOption(label string) core.Selector { return attributeOption("OS", label) }

// SoftwareCheckbox locates the checkbox of the software labelled label.
func SoftwareCheckbox(label string) core.Selector {
	return core.XPath(fmt.Sprintf("//label[contains(text(),'%s')]/preceding-sibling::input[@type='checkbox']", label))
}

// ShippingMethodOption locates the shipping method radio whose value contains method.
func ShippingMethodOption(method string) core.Selector {
	return core.XPath(fmt.Sprintf("//input[contains(@value,'%s')]", method))
}

// PaymentMethodOption locates the payment method radio labelled method.
func PaymentMethodOption(method string) core.Selector {
	return core.XPath(fmt.Sprintf("//label[contains(text(),'%s')]/../input", method))
}

// Product is the product details page.
type Product struct{ *Page }

// Computer is a build-your-own computer configuration. Software holds "|"-separated labels.
type Computer struct {
	Processor string
	RAM       string
	HDD       string
	OS        string
	Software  string
}

// Configure picks the computer's attributes. Processor and RAM are radios on some
// models and dropdowns on others.
func (p Product) Configure(ctx context.Context, c Computer) error {
	if err := p.Click(ctx, HDDOption(c.HDD)); err != nil {
		return err
	}
	if err := p.choose(ctx, ProcessorOption(c.Processor), ProcessorDropdown, c.Processor); err != nil {
		return err
	}
	if err := p.choose(ctx, RAMOption(c.RAM), RAMDropdown, c.RAM); err != nil {
		return err
	}
	if c.OS != "" {
		if err := p.Click(ctx, OSOption(c.OS)); err != nil {
			return err
		}
	}
	for _, software := range strings.Split(c.Software, "|") {
		if software = strings.TrimSpace(software); software == "" {
			continue
		}
		if err := p.check(ctx, SoftwareCheckbox(software)); err != nil {
			return err
		}
	}
	return nil
}

// choose clicks radio when it is on the page, else selects label in dropdown.
func (p Product) choose(ctx context.Context, radio, dropdown core.Selector, label string) error {
	if shown, _ := p.Driver.Displayed(radio); shown {
		return p.Click(ctx, radio)
	}
	return p.Select(ctx, dropdown, label)
}

// check ticks the checkbox sel unless it already is.
func (p Product) check(ctx context.Context, sel core.Selector) error {
	if err := p.WaitVisible(ctx, sel); err != nil {
		return err
	}
	if checked, _ := p.Attributes(sel, "checked"); len(checked) > 0 && checked[0] != "" && checked[0] != "false" {
		return nil
	}
	return p.Click(ctx, sel)
}

// GiftCard is what the gift card form asks for.
type GiftCard struct {
	RecipientName  string
	RecipientEmail string
	SenderName     string
	SenderEmail    string
	Message        string
}

// FillGiftCard fills the gift card form. Physical cards have no email fields.
func (p Product) FillGiftCard(ctx context.Context, g GiftCard) error {
	if err := p.Type(ctx, RecipientName, g.RecipientName); err != nil {
		return err
	}
	if err := p.Type(ctx, SenderName, g.SenderName); err != nil {
		return err
	}
	if shown, _ := p.Driver.Displayed(RecipientEmail); shown {
		if err := p.Type(ctx, RecipientEmail, g.RecipientEmail); err != nil {
			return err
		}
		if err := p.Type(ctx, SenderEmail, g.SenderEmail); err != nil {
			return err
		}
	}
	return p.Type(ctx, GiftCardMessage, g.Message)
}

// SetQuantity replaces the quantity to add.
func (p Product) SetQuantity(ctx context.Context, quantity string) error {
	return p.Type(ctx, ProductQuantity, quantity)
}

// AddToCart adds the configured product and returns the notification banner text.
func (p Product) AddToCart(ctx context.Context) (string, error) {
	if err := p.Click(ctx, ProductAddToCart); err != nil {
		return "", err
	}
	return p.Text(ctx, NotificationText)
}

// Checkout is the one-page checkout.
type Checkout struct{ *Page }

// Payment is the payment step input. Expiry is "MM-YYYY".
type Payment struct {
	Method     string
	CardType   string
	HolderName string
	CardNumber string
	Expiry     string
	Code       string
	PONumber   string
}

// BillingAddress keeps the first saved billing address and continues.
func (c Checkout) BillingAddress(ctx context.Context) error {
	if err := c.selectFirst(ctx, BillingAddressSelect, BillingAddressOptions); err != nil {
		return err
	}
	return c.Click(ctx, BillingContinue)
}

// Shipping picks the shipping address and method. In-store pickup skips the method
// step and NotApplicable, for orders without shipping, does nothing.
func (c Checkout) Shipping(ctx context.Context, method string) error {
	switch {
	case strings.EqualFold(method, NotApplicable):
		return nil
	case strings.EqualFold(method, ShippingInStore):
		if err := c.Click(ctx, PickUpInStore); err != nil {
			return err
		}
		return c.Click(ctx, ShippingContinue)
	}
	if err := c.selectFirst(ctx, ShippingAddressSelect, ShippingAddressOptions); err != nil {
		return err
	}
	if err := c.Click(ctx, ShippingContinue); err != nil {
		return err
	}
	if err := c.Click(ctx, ShippingMethodOption(method)); err != nil {
		return err
	}
	return c.Click(ctx, ShippingMethodContinue)
}

// Pay picks the payment method, fills its details and continues to confirmation.
func (c Checkout) Pay(ctx context.Context, pay Payment) error {
	if err := c.Click(ctx, PaymentMethodOption(pay.Method)); err != nil {
		return err
	}
	if err := c.Click(ctx, PaymentMethodContinue); err != nil {
		return err
	}

	switch {
	case strings.EqualFold(pay.Method, PaymentCreditCard):
		month, year, ok := strings.Cut(pay.Expiry, "-")
		if !ok {
			return core.ErrScenarioFailed.WithMessage(fmt.Sprintf("expiration date %q is not MM-YYYY", pay.Expiry))
		}
		if err := c.Select(ctx, CreditCardType, pay.CardType); err != nil {
			return err
		}
		if err := c.Type(ctx, CardholderName, pay.HolderName); err != nil {
			return err
		}
		if err := c.Type(ctx, CardNumber, pay.CardNumber); err != nil {
			return err
		}
		if err := c.Select(ctx, ExpireMonth, strings.TrimSpace(month)); err != nil {
			return err
		}
		if err := c.Select(ctx, ExpireYear, strings.TrimSpace(year)); err != nil {
			return err
		}
		if err := c.Type(ctx, CardCode, pay.Code); err != nil {
			return err
		}
	case strings.EqualFold(pay.Method, PaymentPurchaseOrder):
		if err := c.Type(ctx, PurchaseOrderNumber, pay.PONumber); err != nil {
			return err
		}
	}
	return c.Click(ctx, PaymentInfoContinue)
}

// Confirm places the order, returns its number and opens its details page.
func (c Checkout) Confirm(ctx context.Context) (string, error) {
	if err := c.Click(ctx, ConfirmOrderButton); err != nil {
		return "", err
	}
	text, err := c.Text(ctx, ConfirmedOrderNumber)
	if err != nil {
		return "", err
	}
	number := Digits(text)
	if number == "" {
		return "", core.ErrScenarioFailed.WithMessage(fmt.Sprintf("no order number in %q", text))
	}
	return number, c.Click(ctx, ConfirmedDetailsLink)
}

// selectFirst picks the first option of dropdown.
func (c Checkout) selectFirst(ctx context.Context, dropdown, options core.Selector) error {
	if err := c.WaitVisible(ctx, dropdown); err != nil {
		return err
	}
	labels, err := c.Texts(options)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return core.ErrScenarioFailed.WithMessage(fmt.Sprintf("%s has no options", dropdown))
	}
	return c.Select(ctx, dropdown, labels[0])
}
