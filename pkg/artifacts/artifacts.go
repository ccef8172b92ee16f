// Package artifacts prepares the directories a run writes screenshots and downloads to.
package artifacts

import (
	"github.com/hashicorp/go-multierror"

	"github.com/devicelab-dev/selenium-runner/pkg/capture"
	"github.com/devicelab-dev/selenium-runner/pkg/download"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
)

// PrepareDirs empties the screenshot and download directories before a suite
// starts. Either argument may be nil.
func PrepareDirs(c *capture.Capturer, w *download.Watcher) error {
	var errs *multierror.Error
	if c != nil {
		if err := capture.ResetDir(c.Dir()); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			logger.Debug("cleared screenshot dir %s", c.Dir())
		}
	}
	if w != nil {
		if err := w.Reset(); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			logger.Debug("cleared download dir %s", w.Dir())
		}
	}
	return errs.ErrorOrNil()
}
