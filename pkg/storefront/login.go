package storefront

import (
	"context"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/pages"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// login signs in and out. Credentials come from the email/password cells,
// falling back to the configured account.
type login struct {
	env Env
}

func (l *login) Run(ctx context.Context, s *session.Session, params map[string]string) error {
	p := l.env.page(s)
	if err := l.env.open(p); err != nil {
		return err
	}
	email := param(params, "email", l.env.Email)
	if err := signIn(ctx, p, email, param(params, "password", l.env.Password)); err != nil {
		return err
	}
	s.Entry.Log(core.SeverityInfo, "logged in as "+email, core.ArtifactRef{})
	l.env.snapshot(s, param(params, "Test_Case", ""))
	return pages.Home{Page: p}.Logout(ctx)
}

func signIn(ctx context.Context, p *pages.Page, email, password string) error {
	if err := p.Click(ctx, pages.LoginLink); err != nil {
		return err
	}
	return pages.Login{Page: p}.SignIn(ctx, email, password)
}
