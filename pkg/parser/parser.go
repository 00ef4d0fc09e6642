package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509/pkix"
	"github.com/google/certificate-transparency-go/x509util"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

// DateLayout is the textual form the parser gives certificate validity dates
const DateLayout = time.RFC3339

type ParserInterface interface {
	ParseCertificatePEM(pemText string) (*models.DecodedCertificate, error)
}

// Parser decodes PEM encoded X.509 certificates
type Parser struct{}

// New creates a new certificate parser
func New() ParserInterface {
	return &Parser{}
}

// ParseCertificatePEM decodes exactly one PEM certificate block. Anything
// else in pemText, or a block of another type, is an error.
func (p *Parser) ParseCertificatePEM(pemText string) (*models.DecodedCertificate, error) {
	cert, err := x509util.CertificateFromPEM(bytes.TrimSpace([]byte(pemText)))
	if x509.IsFatal(err) {
		return nil, fmt.Errorf("failed to parse X509 certificate: %w", err)
	}
	if cert == nil {
		return nil, errors.New("failed to parse X509 certificate")
	}

	decoded := &models.DecodedCertificate{
		Subject:     parseName(cert.Subject),
		Issuer:      parseName(cert.Issuer),
		NotBefore:   cert.NotBefore.UTC().Format(DateLayout),
		NotAfter:    cert.NotAfter.UTC().Format(DateLayout),
		AltNames:    extractAltNames(cert),
		Fingerprint: calculateFingerprint(cert.Raw),
	}
	if cert.SerialNumber != nil {
		decoded.Serial = cert.SerialNumber.String()
	}

	return decoded, nil
}

// parseName converts a pkix name into an attribute map, first value wins
func parseName(name pkix.Name) models.RDN {
	rdn := models.RDN{}

	set := func(key string, values []string) {
		if len(values) > 0 && values[0] != "" {
			rdn[key] = values[0]
		}
	}

	set("countryName", name.Country)
	set("stateOrProvinceName", name.Province)
	set("localityName", name.Locality)
	set("streetAddress", name.StreetAddress)
	set("postalCode", name.PostalCode)
	set("organizationName", name.Organization)
	set("organizationalUnitName", name.OrganizationalUnit)
	if name.SerialNumber != "" {
		rdn["serialNumber"] = name.SerialNumber
	}
	if name.CommonName != "" {
		rdn["commonName"] = name.CommonName
	}

	return rdn
}

// extractAltNames flattens all subject alternative names in certificate order
func extractAltNames(cert *x509.Certificate) []string {
	names := make([]string, 0, len(cert.DNSNames)+len(cert.IPAddresses)+len(cert.EmailAddresses)+len(cert.URIs))
	names = append(names, cert.DNSNames...)
	for _, address := range cert.IPAddresses {
		names = append(names, address.String())
	}
	names = append(names, cert.EmailAddresses...)
	for _, uri := range cert.URIs {
		names = append(names, uri.String())
	}
	return names
}

// calculateFingerprint calculates SHA256 fingerprint of certificate
func calculateFingerprint(raw []byte) string {
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:])
}
