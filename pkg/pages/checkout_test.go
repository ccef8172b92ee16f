package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
)

func present(sels ...core.Selector) map[string]mock.Element {
	m := make(map[string]mock.Element, len(sels))
	for _, s := range sels {
		m[s.String()] = mock.Element{}
	}
	return m
}

func TestProductConfigurePrefersRadios(t *testing.T) {
	d := mock.New(mock.Config{Elements: present(
		HDDOption("400 GB"), ProcessorOption("2.2 GHz"), RAMDropdown, SoftwareCheckbox("Total Commander"),
	)})
	err := Product{newPage(d)}.Configure(context.Background(), Computer{
		Processor: "2.2 GHz",
		RAM:       "8GB",
		HDD:       "400 GB",
		Software:  "Total Commander| ",
	})
	require.NoError(t, err)
	assert.Equal(t, []core.Selector{HDDOption("400 GB"), ProcessorOption("2.2 GHz"), SoftwareCheckbox("Total Commander")}, d.Clicks())
	assert.Equal(t, "8GB", d.Selected(RAMDropdown))
	assert.Empty(t, d.Selected(ProcessorDropdown))
}

func TestProductGiftCardWithoutEmail(t *testing.T) {
	d := mock.New(mock.Config{Elements: present(RecipientName, SenderName, GiftCardMessage)})
	err := Product{newPage(d)}.FillGiftCard(context.Background(), GiftCard{
		RecipientName:  "Sam",
		RecipientEmail: "sam@example.com",
		SenderName:     "Jane",
		Message:        "Enjoy",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sam", d.Typed(RecipientName))
	assert.Empty(t, d.Typed(RecipientEmail), "physical cards have no email field")
	assert.Equal(t, "Enjoy", d.Typed(GiftCardMessage))
}

func TestCheckoutShippingInStore(t *testing.T) {
	d := mock.New(mock.Config{Elements: present(PickUpInStore, ShippingContinue)})
	require.NoError(t, Checkout{newPage(d)}.Shipping(context.Background(), "store"))
	assert.Equal(t, []core.Selector{PickUpInStore, ShippingContinue}, d.Clicks())

	d = mock.New(mock.Config{})
	require.NoError(t, Checkout{newPage(d)}.Shipping(context.Background(), NotApplicable))
	assert.Empty(t, d.Clicks())
}

func TestCheckoutPayRejectsBadExpiry(t *testing.T) {
	d := mock.New(mock.Config{Elements: present(
		PaymentMethodOption(PaymentCreditCard), PaymentMethodContinue, CreditCardType,
	)})
	err := Checkout{newPage(d)}.Pay(context.Background(), Payment{Method: PaymentCreditCard, Expiry: "2030"})
	require.ErrorIs(t, err, core.ErrScenarioFailed)
	assert.Contains(t, err.Error(), "MM-YYYY")
}

func TestCheckoutBillingAddressNeedsOptions(t *testing.T) {
	d := mock.New(mock.Config{Elements: present(BillingAddressSelect, BillingContinue)})
	err := Checkout{newPage(d)}.BillingAddress(context.Background())
	require.ErrorIs(t, err, core.ErrScenarioFailed)
	assert.Empty(t, d.Clicks())
}

func TestCheckoutConfirm(t *testing.T) {
	d := mock.New(mock.Config{Elements: map[string]mock.Element{
		ConfirmOrderButton.String():   {},
		ConfirmedOrderNumber.String(): {Text: "Order number: 5678"},
		ConfirmedDetailsLink.String(): {},
	}})
	number, err := Checkout{newPage(d)}.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5678", number)
	assert.Equal(t, []core.Selector{ConfirmOrderButton, ConfirmedDetailsLink}, d.Clicks())
}
