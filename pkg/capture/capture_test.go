package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

func newSession(t *testing.T, cfg mock.Config) *session.Session {
	t.Helper()
	rep, err := report.New(report.Options{OutputDir: t.TempDir(), SkipHTML: true, SkipAllure: true})
	require.NoError(t, err)
	m := session.NewManager(mock.NewPool(cfg).Factory(), rep)
	sess, err := m.Acquire(context.Background(), 1, core.Descriptor{Name: "LoginTest"}, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Release(1) })
	return sess
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
}

func TestCaptureAttachesScreenshot(t *testing.T) {
	sess := newSession(t, mock.Config{})
	dir := filepath.Join(t.TempDir(), "screenshots")
	c := New(dir)
	c.now = fixedClock

	ref := c.Capture(sess, core.SeverityFail, "LoginTest_attempt1_FAIL")
	require.False(t, ref.IsEmpty())
	assert.Equal(t, core.ContentTypePNG, ref.ContentType)
	assert.Equal(t, filepath.Join(dir, "LoginTest_attempt1_FAIL_07032024_140509.png"), ref.File)
	assert.FileExists(t, ref.File)

	detail := sess.Entry.Detail()
	require.Len(t, detail.Artifacts(), 1)
	assert.Equal(t, ref, detail.Artifacts()[0])
	assert.Equal(t, 1, detail.CountSeverity(core.SeverityFail))
	assert.FileExists(t, filepath.Join(sess.Entry.AssetsDir(), filepath.Base(ref.Path)))
}

func TestCaptureUnwritableDirReturnsEmptyRef(t *testing.T) {
	sess := newSession(t, mock.Config{})
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	c := New(filepath.Join(blocker, "screenshots"))
	ref := c.Capture(sess, core.SeverityInfo, "LoginTest_attempt1_INFO")
	assert.True(t, ref.IsEmpty())
	detail := sess.Entry.Detail()
	assert.Empty(t, detail.Artifacts(), "nothing attached")
}

func TestCaptureScreenshotError(t *testing.T) {
	sess := newSession(t, mock.Config{ScreenshotErr: errors.New("session deleted")})
	c := New(t.TempDir())
	assert.True(t, c.Capture(sess, core.SeverityFail, "x").IsEmpty())
}

func TestCaptureWithoutSession(t *testing.T) {
	c := New(t.TempDir())
	assert.True(t, c.Capture(nil, core.SeverityFail, "x").IsEmpty())
	assert.True(t, c.Capture(&session.Session{}, core.SeverityFail, "x").IsEmpty())
}

type panicDriver struct{ core.Driver }

func (panicDriver) Screenshot() ([]byte, error) { panic("boom") }

func TestCaptureRecoversPanic(t *testing.T) {
	sess := newSession(t, mock.Config{})
	original := sess.Driver
	sess.Driver = panicDriver{original}
	defer func() { sess.Driver = original }()

	c := New(t.TempDir())
	assert.NotPanics(t, func() {
		assert.True(t, c.Capture(sess, core.SeverityFail, "x").IsEmpty())
	})
}

func TestSaveDoesNotLog(t *testing.T) {
	sess := newSession(t, mock.Config{})
	c := New(t.TempDir())
	ref := c.Save(sess, "cart page")
	require.False(t, ref.IsEmpty())
	assert.Empty(t, sess.Entry.Detail().Logs)
	assert.Contains(t, filepath.Base(ref.File), "cart_page_")
}

func TestFileName(t *testing.T) {
	at := fixedClock()
	tests := []struct {
		label string
		want  string
	}{
		{"ShoppingCartTest_row2_attempt1_FAIL", "ShoppingCartTest_row2_attempt1_FAIL_07032024_140509.png"},
		{"  spaces and/slashes ", "spaces_and_slashes_07032024_140509.png"},
		{"", "screenshot_07032024_140509.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.label, at), tt.label)
	}
}

func TestResetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.png"), []byte("x"), 0o644))

	require.NoError(t, ResetDir(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
