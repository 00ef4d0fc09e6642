package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tb0hdan/ctlog-checker/pkg/aggregator"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/extract"
	"github.com/tb0hdan/ctlog-checker/pkg/feed"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"github.com/tb0hdan/ctlog-checker/pkg/parser"
	"github.com/tb0hdan/ctlog-checker/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidArgument = errors.New("invalid argument")

// FetchAndParseFunc retrieves and parses the feed of one domain name pattern
type FetchAndParseFunc func(ctx context.Context, pattern string) (*models.Document, error)

type CheckerInterface interface {
	CheckCTLogs(ctx context.Context, patterns []string, window models.FilterWindow) (*models.AggregateResult, error)
}

// Checker runs one check over a set of domain name patterns
type Checker struct {
	logger         *zap.Logger
	fetcher        feed.FetcherInterface
	feedParser     feed.ParserInterface
	aggregator     aggregator.AggregatorInterface
	maxConcurrency int
}

// New creates a checker backed by the HTTP feed configured in config
func New(config *configs.Config, logger *zap.Logger) *Checker {
	httpClient := utils.GetRetryableClient(config.Feed, logger)
	fetcher := feed.NewFetcher(config.Feed.BaseURL, config.Feed.UserAgent, httpClient)
	extractor := extract.New(parser.New(), time.Now)

	return NewWithCollaborators(
		logger,
		fetcher,
		feed.NewParser(),
		aggregator.New(extractor, logger),
		config.Checker.MaxConcurrency,
	)
}

// NewWithCollaborators creates a checker from explicit collaborators.
// maxConcurrency <= 0 runs every pattern at once.
func NewWithCollaborators(logger *zap.Logger, fetcher feed.FetcherInterface, feedParser feed.ParserInterface,
	agg aggregator.AggregatorInterface, maxConcurrency int) *Checker {
	return &Checker{
		logger:         logger,
		fetcher:        fetcher,
		feedParser:     feedParser,
		aggregator:     agg,
		maxConcurrency: maxConcurrency,
	}
}

// CheckCTLogs pulls the feed of every pattern and returns one aggregate of
// all admitted certificates. Any failure yields an error and no aggregate.
func (c *Checker) CheckCTLogs(ctx context.Context, patterns []string, window models.FilterWindow) (*models.AggregateResult, error) {
	if err := validate(patterns, window); err != nil {
		return nil, err
	}

	ctx = WithRunID(ctx, RunIDFromContext(ctx))
	logger := c.logger.With(runIDField(ctx))
	logger.Info("Checking CT logs", zap.Strings("patterns", patterns))

	started := time.Now()
	result, err := c.Run(ctx, patterns, window, c.fetchAndParse)
	if err != nil {
		logger.Error("CT log check failed", zap.Error(err), zap.Duration("duration", time.Since(started)))
		return nil, err
	}

	logger.Info("CT log check complete",
		zap.Int("all_certs", result.AllCerts.Count),
		zap.Int("unexpected_ca", result.UnexpectedCA.Count),
		zap.Int("issuers", result.ByCA.Count),
		zap.Duration("duration", time.Since(started)),
	)

	return result, nil
}

// fetchAndParse fetches and parses one pattern's feed
func (c *Checker) fetchAndParse(ctx context.Context, pattern string) (*models.Document, error) {
	raw, err := c.fetcher.FetchFeed(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return c.feedParser.ParseDocument(raw)
}

// Run processes every pattern concurrently and merges the per-pattern
// aggregates in pattern order. The first failure cancels the patterns still
// in flight and is returned at once, without waiting for them.
func (c *Checker) Run(ctx context.Context, patterns []string, window models.FilterWindow, fetchAndParse FetchAndParseFunc) (*models.AggregateResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := c.maxConcurrency
	if limit <= 0 || limit > len(patterns) {
		limit = len(patterns)
	}

	results := make([]*models.AggregateResult, len(patterns))
	failed := make(chan error, 1)
	done := make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	go func() {
		for idx, pattern := range patterns {
			if gctx.Err() != nil {
				break
			}
			idx, pattern := idx, pattern
			g.Go(func() error {
				result, err := c.runPattern(gctx, pattern, window, fetchAndParse)
				if err != nil {
					err = fmt.Errorf("pattern %q: %w", pattern, err)
					select {
					case failed <- err:
					default:
					}
					return err
				}
				results[idx] = result
				return nil
			})
		}
		done <- g.Wait()
	}()

	select {
	case err := <-failed:
		return nil, err
	case err := <-done:
		if err != nil {
			return nil, err
		}
		// Patterns left unlaunched after cancellation leave no error behind.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	merged := models.NewAggregateResult()
	for _, result := range results {
		merged.Merge(result)
	}
	merged.Recount()

	return merged, nil
}

func (c *Checker) runPattern(ctx context.Context, pattern string, window models.FilterWindow, fetchAndParse FetchAndParseFunc) (*models.AggregateResult, error) {
	logger := c.logger.With(runIDField(ctx), zap.String("pattern", pattern))
	logger.Debug("Fetching feed")

	doc, err := fetchAndParse(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", feed.ErrDocumentMalformed)
	}

	result, err := c.aggregator.Aggregate(doc, window)
	if err != nil {
		return nil, err
	}

	logger.Debug("Feed aggregated",
		zap.Int("all_certs", result.AllCerts.Count),
		zap.Int("unexpected_ca", result.UnexpectedCA.Count),
	)
	return result, nil
}

// validate rejects empty pattern lists, empty patterns and bad expected CA
// expressions before any network activity.
func validate(patterns []string, window models.FilterWindow) error {
	if len(patterns) == 0 {
		return fmt.Errorf("%w: no domain name patterns", ErrInvalidArgument)
	}
	for idx, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("%w: domain name pattern %d is empty", ErrInvalidArgument, idx)
		}
	}
	if _, err := aggregator.CompileExpectedCAs(window.ExpectedCAs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}
