package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

func noop(context.Context, *session.Session, map[string]string) error { return nil }

func TestRegistryNew(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("LoginTest", noop))

	s, err := r.New("logintest")
	require.NoError(t, err)
	assert.NoError(t, s.Run(context.Background(), nil, nil))

	_, err = r.New("CheckoutTest")
	require.ErrorIs(t, err, core.ErrUnknownScenario)
	assert.Contains(t, err.Error(), "CheckoutTest")
	assert.True(t, core.IsCategory(err, core.ErrCategoryConfig))
}

func TestRegistryFreshInstancePerCall(t *testing.T) {
	type counter struct{ Func }
	r := NewRegistry()
	created := 0
	r.MustRegister("ShoppingCartTest", func() Scenario {
		created++
		return &counter{Func: noop}
	})

	a, err := r.New("ShoppingCartTest")
	require.NoError(t, err)
	b, err := r.New("ShoppingCartTest")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, created)
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("LoginTest", noop))
	assert.Error(t, r.RegisterFunc("LOGINTEST", noop))
	assert.Error(t, r.RegisterFunc("  ", noop))
	assert.Error(t, r.Register("Other", nil))
	assert.Panics(t, func() { r.MustRegister("LoginTest", func() Scenario { return Func(noop) }) })
}

func TestRegistryNamesAndMissing(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"ShoppingCartTest", "FooterLinkTest", "LoginTest"} {
		require.NoError(t, r.RegisterFunc(n, noop))
	}
	assert.Equal(t, []string{"FooterLinkTest", "LoginTest", "ShoppingCartTest"}, r.Names())
	assert.True(t, r.Has(" logintest "))
	assert.Equal(t, []string{"Nope", "Other"}, r.Missing([]string{"LoginTest", "Nope", "Other", "Nope"}))
	assert.Nil(t, r.Missing([]string{"LoginTest"}))
}

func TestFuncPassesThroughError(t *testing.T) {
	want := errors.New("boom")
	f := Func(func(context.Context, *session.Session, map[string]string) error { return want })
	assert.ErrorIs(t, f.Run(context.Background(), nil, nil), want)
}
