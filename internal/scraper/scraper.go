// Package scraper crawls a wiki breadth-first and collects article text per page.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/wikichat/internal/extract"
	"github.com/hyperjump/wikichat/internal/models"
)

// Scraper fetches pages from one site and follows same-site article links.
type Scraper struct {
	baseURL         string
	client          *http.Client
	limiter         *rate.Limiter
	userAgent       string
	articlePrefix   string
	excludePrefixes []string
	containerClass  string
	logger          *zap.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets a logger for per-page progress and fetch failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithRateLimit paces requests to rps per second. Zero or negative means unlimited.
func WithRateLimit(rps float64) Option {
	return func(s *Scraper) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) { s.userAgent = ua }
}

// WithLinkFilter sets which hrefs are followed: those starting with prefix and with none of excludes.
func WithLinkFilter(prefix string, excludes []string) Option {
	return func(s *Scraper) {
		s.articlePrefix = prefix
		s.excludePrefixes = excludes
	}
}

// WithContainerClass sets the class of the article body element.
func WithContainerClass(class string) Option {
	return func(s *Scraper) { s.containerClass = class }
}

// New returns a Scraper for the site at baseURL.
func New(baseURL string, opts ...Option) *Scraper {
	s := &Scraper{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{},
		limiter:         rate.NewLimiter(rate.Inf, 0),
		articlePrefix:   "/wiki/",
		excludePrefixes: []string{"/wiki/Special"},
		containerClass:  extract.DefaultContainerClass,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Follow reports whether href is an article link the crawl should queue.
func (s *Scraper) Follow(href string) bool {
	if !strings.HasPrefix(href, s.articlePrefix) {
		return false
	}
	for _, ex := range s.excludePrefixes {
		if strings.HasPrefix(href, ex) {
			return false
		}
	}
	return true
}

// Scrape visits at most maxPages distinct paths breadth-first from start and returns the
// page records in visitation order. A page that fails to fetch counts toward the budget
// but produces no record. The only error returned is context cancellation, together with
// the pages collected so far.
func (s *Scraper) Scrape(ctx context.Context, start string, maxPages int) ([]models.Page, error) {
	queue := []string{start}
	seen := map[string]struct{}{start: {}}
	visited := 0
	var pages []models.Page

	for len(queue) > 0 && visited < maxPages {
		current := queue[0]
		queue = queue[1:]
		visited++

		res, err := s.fetch(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			s.logError("scrape page failed", current, err)
			continue
		}
		pages = append(pages, models.Page{Identifier: current, Text: res.Text})
		if s.logger != nil {
			s.logger.Info("scraped page",
				zap.String("page", current),
				zap.Bool("article_found", res.Found),
				zap.Int("links", len(res.Links)),
				zap.Int("visited", visited))
		}

		for _, href := range res.Links {
			if !s.Follow(href) {
				continue
			}
			if _, ok := seen[href]; ok {
				continue
			}
			seen[href] = struct{}{}
			queue = append(queue, href)
		}
	}
	return pages, nil
}

func (s *Scraper) fetch(ctx context.Context, path string) (*extract.Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return extract.Article(resp.Body, s.containerClass)
}

func (s *Scraper) logError(msg, page string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.String("page", page), zap.String("url", s.baseURL+page), zap.Error(err))
	}
}
