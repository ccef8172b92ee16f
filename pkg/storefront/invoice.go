package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/download"
	"github.com/devicelab-dev/selenium-runner/pkg/pages"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// Invoice sources selectable with the "source" cell.
const (
	SourceOrders       = "orders"
	SourceDownloadable = "downloadable"
)

// pdfInvoice signs in, opens an order and checks its PDF invoice against the order details.
type pdfInvoice struct {
	env Env
}

func (v *pdfInvoice) Run(ctx context.Context, s *session.Session, params map[string]string) error {
	if v.env.Downloads == nil {
		return core.Skip("no download directory configured")
	}
	p := v.env.page(s)
	if err := v.env.open(p); err != nil {
		return err
	}
	if err := signIn(ctx, p, param(params, "email", v.env.Email), param(params, "password", v.env.Password)); err != nil {
		return err
	}
	if err := p.Click(ctx, pages.AccountLink); err != nil {
		return err
	}

	orders := pages.Orders{Page: p}
	var details pages.Details
	var err error
	switch source := strings.ToLower(param(params, "source", SourceOrders)); source {
	case SourceOrders:
		details, err = v.fromOrders(ctx, orders)
	case SourceDownloadable:
		details, err = v.fromDownloadable(ctx, orders)
	default:
		return core.ErrScenarioFailed.WithMessage(fmt.Sprintf("unknown invoice source %q", source))
	}
	if err != nil {
		return err
	}

	if err := p.Click(ctx, pages.PDFInvoiceButton); err != nil {
		return err
	}
	text, err := v.env.Downloads.ReadPDF(ctx, download.InvoiceFileName(details.Number))
	if err != nil {
		return err
	}
	if missing := download.ContainsAll(text, details.CartTotal, details.Quantity, details.PaymentMethod, details.Number); len(missing) > 0 {
		return core.ErrScenarioFailed.
			WithMessage(fmt.Sprintf("PDF invoice of order %s is missing %s", details.Number, strings.Join(missing, ", ")))
	}
	s.Entry.Log(core.SeverityInfo, "PDF invoice validated for order "+details.Number, core.ArtifactRef{})
	v.env.snapshot(s, param(params, "Test_Case", "PDF_Invoice_"+details.Number))
	return nil
}

func (v *pdfInvoice) fromOrders(ctx context.Context, orders pages.Orders) (pages.Details, error) {
	summary, err := orders.OpenLatest(ctx)
	if err != nil {
		return pages.Details{}, err
	}
	details, err := orders.Details(ctx)
	if err != nil {
		return details, err
	}
	if !strings.EqualFold(details.Status, summary.Status) {
		return details, pages.Mismatch("order status", summary.Status, details.Status)
	}
	if details.Number != summary.Number {
		return details, pages.Mismatch("order number", summary.Number, details.Number)
	}
	if !strings.Contains(summary.Total, details.OrderTotal) {
		return details, pages.Mismatch("order total", summary.Total, details.OrderTotal)
	}
	return details, nil
}

func (v *pdfInvoice) fromDownloadable(ctx context.Context, orders pages.Orders) (pages.Details, error) {
	number, err := orders.OpenDownloadable(ctx)
	if err != nil {
		return pages.Details{}, err
	}
	details, err := orders.Details(ctx)
	if err != nil {
		return details, err
	}
	if details.Number != number {
		return details, pages.Mismatch("order number", number, details.Number)
	}
	return details, nil
}
