// Package capture takes best-effort screenshots of a session and attaches them to its report entry.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// TimestampLayout is appended to every screenshot label (ddMMyyyy_HHmmss).
const TimestampLayout = "02012006_150405"

// Capturer writes screenshots into a directory and into the session's report entry.
// It never returns errors: failures are logged and an empty reference is returned.
type Capturer struct {
	dir string
	now func() time.Time
}

// New creates a Capturer writing into dir.
func New(dir string) *Capturer {
	return &Capturer{dir: dir, now: time.Now}
}

// Dir returns the screenshot directory.
func (c *Capturer) Dir() string {
	return c.dir
}

// Capture screenshots the session's browser, saves it as {label}_{timestamp}.png,
// copies it into the report assets and logs it on the session's entry at sev.
func (c *Capturer) Capture(sess *session.Session, sev core.Severity, label string) core.ArtifactRef {
	ref, err := c.take(sess, label)
	if err != nil {
		c.logFailure(sess, label, err)
		return core.ArtifactRef{}
	}
	sess.Entry.Log(sev, label, ref)
	return ref
}

// Save writes an ad-hoc screenshot to the screenshot directory and the report assets
// without adding a log line; scenarios use it to document intermediate states.
func (c *Capturer) Save(sess *session.Session, label string) core.ArtifactRef {
	ref, err := c.take(sess, label)
	if err != nil {
		c.logFailure(sess, label, err)
		return core.ArtifactRef{}
	}
	return ref
}

func (c *Capturer) take(sess *session.Session, label string) (ref core.ArtifactRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.ErrCaptureFailed.WithCause(fmt.Errorf("panic: %v", r))
		}
	}()

	if sess == nil || sess.Driver == nil || sess.Entry == nil {
		return core.ArtifactRef{}, core.ErrCaptureFailed.WithMessage("no live session to capture")
	}

	data, err := sess.Driver.Screenshot()
	if err != nil {
		return core.ArtifactRef{}, core.ErrCaptureFailed.WithCause(err)
	}

	name := FileName(label, c.now())
	file := filepath.Join(c.dir, name)
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return core.ArtifactRef{}, core.ErrCaptureFailed.WithCause(err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return core.ArtifactRef{}, core.ErrCaptureFailed.WithCause(err)
	}

	rel, err := sess.Entry.SaveScreenshot(name, data)
	if err != nil {
		return core.ArtifactRef{}, core.ErrCaptureFailed.WithMessage("could not attach screenshot to report").WithCause(err)
	}
	return core.NewScreenshotRef(label, rel, file), nil
}

func (c *Capturer) logFailure(sess *session.Session, label string, err error) {
	if sess != nil {
		sess.Log.Warn().Err(err).Str("label", label).Msg("screenshot capture failed")
		return
	}
	logger.Warn("screenshot capture failed for %s: %v", label, err)
}

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns the screenshot file name for label taken at t.
func FileName(label string, t time.Time) string {
	clean := strings.Trim(unsafeLabel.ReplaceAllString(strings.TrimSpace(label), "_"), "_.")
	if clean == "" {
		clean = "screenshot"
	}
	return clean + "_" + t.Format(TimestampLayout) + ".png"
}

// ResetDir empties dir, creating it when missing.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0o755)
}
