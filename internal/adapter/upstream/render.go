package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Renderer loads a page in a browser and returns the text content of the
// element matching selector.
type Renderer interface {
	Render(ctx context.Context, url, selector string) ([]byte, error)
}

// RenderError wraps a browser failure.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "render: " + e.Err.Error() }
func (e *RenderError) Unwrap() error { return e.Err }

// ChromeRenderer renders pages with a headless Chrome via chromedp.
// A fresh browser is started per call; rendered candidates are rare fallbacks.
type ChromeRenderer struct {
	userAgent string
}

// NewChromeRenderer creates a renderer that identifies itself with userAgent.
func NewChromeRenderer(userAgent string) *ChromeRenderer {
	return &ChromeRenderer{userAgent: userAgent}
}

func (r *ChromeRenderer) Render(ctx context.Context, url, selector string) ([]byte, error) {
	if selector == "" {
		selector = "body"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1280, 900),
	)
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var text string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.TextContent(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp %s: %w", url, err)
	}
	return []byte(strings.TrimSpace(text)), nil
}
