// Package storefront holds the UI scenarios of the demo web shop, registered by name.
package storefront

import (
	"net/http"
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/capture"
	"github.com/devicelab-dev/selenium-runner/pkg/download"
	"github.com/devicelab-dev/selenium-runner/pkg/pages"
	"github.com/devicelab-dev/selenium-runner/pkg/scenario"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// Scenario names as they appear in the workbook.
const (
	FooterLinkTest       = "FooterLinkTest"
	LoginTest            = "LoginTest"
	ShoppingCartTest     = "ShoppingCartTest"
	PDFInvoiceTest       = "PDFInvoiceTest"
	ComputerCheckoutTest = "ComputerCheckoutTest"
	GiftCardCheckoutTest = "GiftCardCheckoutTest"
)

// RequiredColumns lists the data sheet headers a scenario reads without a fallback.
var RequiredColumns = map[string][]string{
	ShoppingCartTest: {
		"product", "quantity", "message",
		"termsHeading", "termsDetails",
		"country", "state", "zipCode",
		"tcWarningHeading", "tcWarningContent",
		"emptyMessage",
	},
	ComputerCheckoutTest: {
		"product", "quantity",
		"processor", "RAM", "HDD",
		"paymentMethod",
	},
	GiftCardCheckoutTest: {
		"product", "quantity",
		"recipientName", "senderName",
		"paymentMethod",
	},
}

// Env is what every storefront scenario shares.
type Env struct {
	BaseURL  string
	Email    string
	Password string
	Wait     time.Duration // explicit wait per element

	Capturer  *capture.Capturer
	Downloads *download.Watcher
	HTTP      *http.Client // footer link checks; http.DefaultClient when nil
}

func (e Env) page(s *session.Session) *pages.Page {
	return pages.New(s.Driver, e.Wait)
}

// snapshot stores an ad-hoc screenshot when a capturer is configured.
func (e Env) snapshot(s *session.Session, label string) {
	if e.Capturer == nil || label == "" {
		return
	}
	e.Capturer.Save(s, label)
}

func (e Env) open(p *pages.Page) error {
	return p.Open(e.BaseURL)
}

// Register adds every storefront scenario to reg.
func Register(reg *scenario.Registry, env Env) error {
	all := map[string]scenario.Factory{
		FooterLinkTest:       func() scenario.Scenario { return &footerLinks{env: env} },
		LoginTest:            func() scenario.Scenario { return &login{env: env} },
		ShoppingCartTest:     func() scenario.Scenario { return &shoppingCart{env: env} },
		PDFInvoiceTest:       func() scenario.Scenario { return &pdfInvoice{env: env} },
		ComputerCheckoutTest: func() scenario.Scenario { return newComputerCheckout(env) },
		GiftCardCheckoutTest: func() scenario.Scenario { return newGiftCardCheckout(env) },
	}
	for _, name := range []string{FooterLinkTest, LoginTest, ShoppingCartTest, PDFInvoiceTest, ComputerCheckoutTest, GiftCardCheckoutTest} {
		if err := reg.Register(name, all[name]); err != nil {
			return err
		}
	}
	return nil
}

// param returns params[key], or fallback when the cell is empty.
func param(params map[string]string, key, fallback string) string {
	if v := params[key]; v != "" {
		return v
	}
	return fallback
}
