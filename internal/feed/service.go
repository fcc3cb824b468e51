package feed

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Service serves the recent articles of a single configured feed.
type Service struct {
	url      string
	maxItems int
	source   Source
	cache    *Cache
	logger   *zap.Logger
}

// NewService wires a Source and a Cache to the feed at url.
func NewService(url string, maxItems int, source Source, cache *Cache, logger *zap.Logger) *Service {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		url:      url,
		maxItems: maxItems,
		source:   source,
		cache:    cache,
		logger:   logger,
	}
}

// URL returns the feed address the service reads.
func (s *Service) URL() string {
	return s.url
}

// Recent returns up to maxItems articles, newest first as the feed lists
// them. On failure it returns an empty slice together with the error so
// callers can render their fallback without a nil check.
func (s *Service) Recent(ctx context.Context) ([]Item, error) {
	items, hit, err := s.cache.Load(ctx, s.fetch)
	if err != nil {
		s.logger.Warn("Feed unavailable", zap.String("url", s.url), zap.Error(err))
		return []Item{}, err
	}
	if hit {
		s.logger.Debug("Feed cache hit", zap.String("url", s.url), zap.Int("items", len(items)))
	} else {
		s.logger.Debug("Feed cache miss", zap.String("url", s.url), zap.Int("items", len(items)))
	}
	return items, nil
}

// Refresh drops the cached value and fetches again.
func (s *Service) Refresh(ctx context.Context) ([]Item, error) {
	s.cache.Purge()
	return s.Recent(ctx)
}

func (s *Service) fetch(ctx context.Context) ([]Item, error) {
	doc, err := s.source.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}
	items := Extract(doc, s.maxItems)
	if len(items) == 0 {
		s.logger.Info("Feed returned no usable entries", zap.String("url", s.url))
	}
	return items, nil
}

// ProbeResult describes whether the feed parses as a well-formed document.
type ProbeResult struct {
	OK      bool   `json:"ok"`
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// Probe fetches the feed and parses it strictly with gofeed. It bypasses the
// cache and is meant for operators checking the upstream source.
func (s *Service) Probe(ctx context.Context) ProbeResult {
	result := ProbeResult{URL: s.url}

	doc, err := s.source.Fetch(ctx, s.url)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	parsed, err := gofeed.NewParser().ParseString(doc)
	if err != nil {
		result.Error = fmt.Sprintf("failed to parse feed: %v", err)
		return result
	}

	result.OK = true
	result.Title = parsed.Title
	result.Entries = len(parsed.Items)
	return result
}
