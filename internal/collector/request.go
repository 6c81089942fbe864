package collector

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/utils"
)

const (
	acceptHTML      = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptJSON      = "application/json"
	contentEncoding = "gzip"
	acceptLanguage  = "en-US,en;q=0.9"

	maxBodyBytes = 5 << 20
)

// response is a fetched document. URL is the final URL after redirects.
type response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

func (r *response) ok() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

func (r *response) text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// visibleText is the text a visitor reads: HTML documents lose their markup,
// scripts and styles, other bodies are returned as is.
func (r *response) visibleText() string {
	if r == nil {
		return ""
	}
	if !isHTML(r) {
		return r.text()
	}

	p, err := parsePage(r.Body)
	if err != nil {
		return r.text()
	}
	return p.Text
}

// get fetches rawURL, retrying transport errors and 5xx answers with
// exponential backoff. Any other answer is returned as is so callers can
// inspect authentication challenges.
func (c *Collector) get(ctx context.Context, rawURL, accept string) (*response, error) {
	attempts := c.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var (
		resp *response
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := utils.Backoff(attempt-1, c.backoff, maxBackoff)
			c.logger.Debug("retrying request",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			if waitErr := utils.WaitFor(ctx, delay); waitErr != nil {
				return nil, &FetchFailure{URL: rawURL, Err: waitErr}
			}
		}

		resp, err = c.do(ctx, rawURL, accept)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &FetchFailure{URL: rawURL, Err: ctx.Err()}
			}
			continue
		}
		if resp.Status < 500 {
			return resp, nil
		}
	}

	if err != nil {
		return nil, &FetchFailure{URL: rawURL, Err: err}
	}

	return resp, nil
}

func (c *Collector) do(ctx context.Context, rawURL, accept string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Accept", accept)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body of %s: %w", rawURL, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return &response{
		URL:    final,
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (c *Collector) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Accept-Language", acceptLanguage)

	return req
}

func isHTML(resp *response) bool {
	if resp == nil {
		return false
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return ct == "" || strings.Contains(ct, "html")
}
