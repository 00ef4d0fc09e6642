// Package certtest issues throwaway certificates for tests.
package certtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509/pkix"
)

// Template describes a leaf certificate and the CA that signs it
type Template struct {
	Serial      int64
	SubjectCN   string
	SubjectOrg  string
	IssuerCN    string
	IssuerOrg   string
	DNSNames    []string
	IPAddresses []net.IP
	NotBefore   time.Time
	NotAfter    time.Time
}

// Issue creates a CA named after the template issuer and returns a leaf
// signed by it, PEM encoded.
func Issue(tmpl Template) (string, error) {
	der, err := IssueDER(tmpl)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})), nil
}

// IssueDER is Issue without the PEM armor
func IssueDER(tmpl Template) ([]byte, error) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	caName := pkix.Name{CommonName: tmpl.IssuerCN}
	if tmpl.IssuerOrg != "" {
		caName.Organization = []string{tmpl.IssuerOrg}
	}

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               caName,
		NotBefore:             tmpl.NotBefore.Add(-time.Hour),
		NotAfter:              tmpl.NotAfter.Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("creating CA certificate: %w", err)
	}
	ca, err := x509.ParseCertificate(caDER)
	if x509.IsFatal(err) {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}

	serial := tmpl.Serial
	if serial == 0 {
		serial = 2
	}
	leafName := pkix.Name{CommonName: tmpl.SubjectCN}
	if tmpl.SubjectOrg != "" {
		leafName.Organization = []string{tmpl.SubjectOrg}
	}

	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      leafName,
		DNSNames:     tmpl.DNSNames,
		IPAddresses:  tmpl.IPAddresses,
		NotBefore:    tmpl.NotBefore,
		NotAfter:     tmpl.NotAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, ca, &leafKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("creating leaf certificate: %w", err)
	}

	return leafDER, nil
}
