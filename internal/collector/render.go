package collector

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const defaultRenderTimeout = 30 * time.Second

// renderer loads a page in a browser so that client-side rendered catalogues
// become visible.
type renderer interface {
	Render(ctx context.Context, rawURL string) (*response, error)
}

// ChromeRenderer renders pages with a headless Chrome driven by chromedp.
type ChromeRenderer struct {
	chromePath string
	userAgent  string
	timeout    time.Duration
}

func NewChromeRenderer(chromePath, userAgent string, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &ChromeRenderer{chromePath: chromePath, userAgent: userAgent, timeout: timeout}
}

func (r *ChromeRenderer) Render(ctx context.Context, rawURL string) (*response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var (
		mu     sync.Mutex
		status int
		final  string
	)
	chromedp.ListenTarget(taskCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		status = int(e.Response.Status)
		final = e.Response.URL
	})

	var document string
	if err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &document, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	if document == "" {
		return nil, errors.New("rendered document is empty")
	}
	if status == 0 {
		status = http.StatusOK
	}
	if final == "" {
		final = rawURL
	}

	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")

	return &response{URL: final, Status: status, Header: header, Body: []byte(document)}, nil
}
