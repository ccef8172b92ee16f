package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-multierror"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/pages"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// footerLinks checks every footer link with a HEAD request. All links are checked
// before the scenario fails, and every broken one is reported.
type footerLinks struct {
	env Env
}

func (f *footerLinks) Run(ctx context.Context, s *session.Session, _ map[string]string) error {
	p := f.env.page(s)
	if err := f.env.open(p); err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, pages.FooterLinks); err != nil {
		return err
	}
	links, err := pages.Home{Page: p}.FooterLinks()
	if err != nil {
		return err
	}

	var broken *multierror.Error
	for _, l := range links {
		if err := f.check(ctx, l.Href); err != nil {
			s.Entry.LogError(core.SeverityWarning, fmt.Sprintf("broken link: %s - %s", l.Text, l.Href), err)
			broken = multierror.Append(broken, fmt.Errorf("%s link - %s is broken: %w", l.Text, l.Href, err))
			continue
		}
		s.Entry.Log(core.SeverityInfo, fmt.Sprintf("footer link ok: %s - %s", l.Text, l.Href), core.ArtifactRef{})
	}
	if err := broken.ErrorOrNil(); err != nil {
		return core.ErrScenarioFailed.
			WithMessage(fmt.Sprintf("%d of %d footer links are broken", len(broken.Errors), len(links))).
			WithCause(err)
	}
	return nil
}

// check sends a HEAD request; any status outside 2xx-3xx is broken.
func (f *footerLinks) check(ctx context.Context, href string) error {
	if href == "" {
		return fmt.Errorf("empty href")
	}
	target, err := f.resolve(href)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return err
	}
	client := f.env.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (f *footerLinks) resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(f.env.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
