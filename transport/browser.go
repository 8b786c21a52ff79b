package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pkg/browser"

	"github.com/nixxel-company-limited/escpos-receipt-printer/escpos"
	"github.com/nixxel-company-limited/escpos-receipt-printer/receipt"
)

// BrowserStrategy writes an 80mm HTML receipt to a temporary file and opens
// it in the system browser, which shows its print dialog on load. It reports
// success once the page is opened; whether the user prints is not observable.
type BrowserStrategy struct {
	dir  string
	now  func() time.Time
	open func(path string) error
}

// NewBrowserStrategy creates a browser strategy writing pages into dir
// (empty for the OS temp directory).
func NewBrowserStrategy(dir string) *BrowserStrategy {
	return &BrowserStrategy{
		dir:  dir,
		now:  time.Now,
		open: browser.OpenFile,
	}
}

func (s *BrowserStrategy) Name() string { return NameBrowser }

// Available is always true: this is the last resort.
func (s *BrowserStrategy) Available(context.Context) bool { return true }

// Attempt leaves the page on disk since the browser loads it asynchronously.
func (s *BrowserStrategy) Attempt(_ context.Context, job Job) error {
	page, err := s.render(job)
	if err != nil {
		return Unavailable(NameBrowser, err)
	}

	f, err := os.CreateTemp(s.dir, "receipt-*.html")
	if err != nil {
		return Unavailable(NameBrowser, fmt.Errorf("create page: %w", err))
	}
	_, werr := f.Write(page)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(f.Name())
		return Unavailable(NameBrowser, fmt.Errorf("write page: %w", err))
	}

	if err := s.open(f.Name()); err != nil {
		_ = os.Remove(f.Name())
		return Unavailable(NameBrowser, fmt.Errorf("open print dialog: %w", err))
	}
	return nil
}

func (s *BrowserStrategy) render(job Job) ([]byte, error) {
	if job.Receipt != nil {
		at := job.Time
		if at.IsZero() {
			at = s.now()
		}
		return receipt.RenderHTML(*job.Receipt, at)
	}
	return receipt.RenderTextHTML(escpos.StripControl(job.Payload))
}
