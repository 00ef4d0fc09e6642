package aggregator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/tb0hdan/ctlog-checker/pkg/extract"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"go.uber.org/zap"
)

var (
	ErrNoFeed            = errors.New("document has no feed container")
	ErrMalformedEntries  = errors.New("feed contains undecodable certificates, rejecting")
	ErrInvalidExpectedCA = errors.New("invalid expected CA pattern")
)

type AggregatorInterface interface {
	Aggregate(doc *models.Document, window models.FilterWindow) (*models.AggregateResult, error)
}

// Aggregator classifies the certificates of one feed document
type Aggregator struct {
	extractor extract.ExtractorInterface
	logger    *zap.Logger
}

// New creates a new feed aggregator
func New(extractor extract.ExtractorInterface, logger *zap.Logger) AggregatorInterface {
	return &Aggregator{
		extractor: extractor,
		logger:    logger,
	}
}

// CompileExpectedCAs compiles the expected CA patterns in order
func CompileExpectedCAs(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidExpectedCA, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Aggregate walks all feed entries in document order and builds the three
// views of the admitted certificates. A document without a feed container, or
// with any entry whose certificate bytes do not decode, yields an error and
// no result. Entries without certificate text are skipped.
func (a *Aggregator) Aggregate(doc *models.Document, window models.FilterWindow) (*models.AggregateResult, error) {
	if doc == nil || doc.Feed == nil {
		return nil, ErrNoFeed
	}

	expectedCAs, err := CompileExpectedCAs(window.ExpectedCAs)
	if err != nil {
		return nil, err
	}

	result := models.NewAggregateResult()
	malformed := 0

	for idx, entry := range doc.Feed.Entries {
		record, err := a.extractor.Extract(entry.Summary)
		if err != nil {
			if extract.IsSkippable(err) {
				a.logger.Debug("Skipping feed entry",
					zap.Error(err),
					zap.Int("index", idx),
					zap.String("id", entry.ID),
				)
				continue
			}
			// Keep going so every bad entry gets logged.
			malformed++
			a.logger.Warn("Undecodable certificate in feed entry",
				zap.Error(err),
				zap.Int("index", idx),
				zap.String("id", entry.ID),
			)
			continue
		}

		if !Admit(record, window) {
			continue
		}

		result.AllCerts.Entries = append(result.AllCerts.Entries, record)

		if IsUnexpected(record, expectedCAs) {
			result.UnexpectedCA.Entries = append(result.UnexpectedCA.Entries, record)
		}

		issuerCN := record.Issuer.CommonName()
		result.ByCA.Entries[issuerCN] = append(result.ByCA.Entries[issuerCN], record)
	}

	result.Recount()

	if malformed > 0 {
		return nil, fmt.Errorf("%w: %d of %d entries", ErrMalformedEntries, malformed, len(doc.Feed.Entries))
	}

	return result, nil
}

// Admit applies the filter window. Both bounds are inclusive.
func Admit(record *models.CertificateRecord, window models.FilterWindow) bool {
	if record.ValidToTS < window.IgnoreExpiredBeforeTS {
		return false
	}
	return window.IgnoreIssuedBeforeTS == 0 || record.ValidFromTS >= window.IgnoreIssuedBeforeTS
}

// IsUnexpected reports whether the issuer common name matches none of the
// expected CAs. Records with no issuer data are never unexpected.
func IsUnexpected(record *models.CertificateRecord, expectedCAs []*regexp.Regexp) bool {
	if len(record.Issuer) == 0 {
		return false
	}
	issuerCN := record.Issuer.CommonName()
	for _, re := range expectedCAs {
		if re.MatchString(issuerCN) {
			return false
		}
	}
	return true
}
