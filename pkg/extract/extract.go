package extract

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"github.com/tb0hdan/ctlog-checker/pkg/parser"
)

var (
	ErrMissingField        = errors.New("feed entry has no summary text")
	ErrNoCertificateFound  = errors.New("summary does not contain an x509 certificate")
	ErrInvalidCertificate  = errors.New("summary does not contain a valid x509 certificate")
	pemBlockPattern        = regexp.MustCompile(`(?s)-----BEGIN CERTIFICATE-----.*?-----END CERTIFICATE-----`)
	lineBreakMarkupPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// IsSkippable reports whether an extraction error only drops its own entry.
// Any other extraction error fails the whole pass.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrNoCertificateFound)
}

type ExtractorInterface interface {
	Extract(summary *models.Text) (*models.CertificateRecord, error)
}

// Extractor turns a feed entry summary into a certificate record
type Extractor struct {
	parser parser.ParserInterface
	now    func() time.Time
}

// New creates an extractor decoding certificates with p. A nil now uses time.Now.
func New(p parser.ParserInterface, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		parser: p,
		now:    now,
	}
}

// Extract locates the PEM block embedded in the summary and decodes it
func (e *Extractor) Extract(summary *models.Text) (*models.CertificateRecord, error) {
	if summary == nil {
		return nil, ErrMissingField
	}

	pemText := FindPEMBlock(summary.Value)
	if pemText == "" {
		return nil, ErrNoCertificateFound
	}

	decoded, err := e.parser.ParseCertificatePEM(pemText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	if decoded == nil {
		return nil, ErrInvalidCertificate
	}

	return e.newRecord(decoded), nil
}

// FindPEMBlock returns the first certificate PEM block in text with line-break
// markup turned into newlines, or an empty string.
func FindPEMBlock(text string) string {
	return pemBlockPattern.FindString(lineBreakMarkupPattern.ReplaceAllString(text, "\n"))
}

func (e *Extractor) newRecord(decoded *models.DecodedCertificate) *models.CertificateRecord {
	record := &models.CertificateRecord{
		Serial:                  decoded.Serial,
		Subject:                 decoded.Subject,
		Issuer:                  decoded.Issuer,
		ValidFrom:               decoded.NotBefore,
		ValidTo:                 decoded.NotAfter,
		SubjectAlternativeNames: decoded.AltNames,
		Fingerprint:             decoded.Fingerprint,
	}
	if record.Subject == nil {
		record.Subject = models.RDN{}
	}
	if record.Issuer == nil {
		record.Issuer = models.RDN{}
	}
	if record.SubjectAlternativeNames == nil {
		record.SubjectAlternativeNames = []string{}
	}

	// Each date is normalized on its own; a bad one leaves the other intact.
	record.ValidFromTS, record.ValidFromKnown = ToEpochSeconds(record.ValidFrom)
	record.ValidToTS, record.ValidToKnown = ToEpochSeconds(record.ValidTo)
	record.DaysRemaining = DaysRemaining(record.ValidToTS, e.now().Unix())

	return record
}
