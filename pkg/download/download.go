// Package download waits for browser downloads and reads downloaded PDF documents.
package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledongthuc/pdf"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
)

// DefaultInterval is how often the download directory is polled.
const DefaultInterval = 500 * time.Millisecond

// InvoiceFileName returns the file name the storefront uses for an order's PDF invoice.
func InvoiceFileName(orderNumber string) string {
	return fmt.Sprintf("order_%s.pdf", orderNumber)
}

// Watcher polls a download directory.
type Watcher struct {
	dir      string
	timeout  time.Duration
	interval time.Duration
}

// NewWatcher creates a Watcher for dir that gives up after timeout.
func NewWatcher(dir string, timeout time.Duration) *Watcher {
	return &Watcher{dir: dir, timeout: timeout, interval: DefaultInterval}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// WaitForFile blocks until name exists in the download directory and is non-empty,
// the timeout elapses, or ctx is done. It returns the file's path.
func (w *Watcher) WaitForFile(ctx context.Context, name string) (string, error) {
	path := filepath.Join(w.dir, name)
	interval := w.interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tries := uint64(w.timeout / interval)

	check := func() error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return backoff.Permanent(fmt.Errorf("%s is a directory", path))
		}
		if info.Size() == 0 {
			return fmt.Errorf("%s is still empty", path)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("waiting for download %s: %v", name, err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), tries), ctx)
	if err := backoff.RetryNotify(check, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", core.ErrDownloadTimeout.
			WithMessage(fmt.Sprintf("%s did not appear within %s", name, w.timeout)).
			WithCause(err)
	}
	return path, nil
}

// Reset removes every file from the download directory, creating it when missing.
func (w *Watcher) Reset() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("clear %s: %w", w.dir, err)
	}
	return os.MkdirAll(w.dir, 0o755)
}

// ReadPDFText extracts the plain text of every page of the PDF at path.
func ReadPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read text from %s: %w", path, err)
	}
	return buf.String(), nil
}

// ReadPDF waits for name and returns its text.
func (w *Watcher) ReadPDF(ctx context.Context, name string) (string, error) {
	path, err := w.WaitForFile(ctx, name)
	if err != nil {
		return "", err
	}
	text, err := ReadPDFText(path)
	if err != nil {
		return "", err
	}
	logger.Debug("read %d characters from %s", len(text), name)
	return text, nil
}

// ContainsAll reports which of want are missing from text.
func ContainsAll(text string, want ...string) []string {
	var missing []string
	for _, w := range want {
		if !strings.Contains(text, w) {
			missing = append(missing, w)
		}
	}
	return missing
}
