package models

// RDN is a mapping from relative distinguished name attribute (commonName,
// organizationName, ...) to its value.
type RDN map[string]string

// CommonName returns the commonName attribute, or an empty string
func (r RDN) CommonName() string {
	return r["commonName"]
}

// DecodedCertificate is what a certificate decoder returns for one PEM block.
// Dates are kept in the decoder's own textual representation.
type DecodedCertificate struct {
	Serial      string
	Subject     RDN
	Issuer      RDN
	NotBefore   string
	NotAfter    string
	AltNames    []string
	Fingerprint string
}

// CertificateRecord represents one parsed certificate advertised by a CT feed
type CertificateRecord struct {
	Serial                  string   `json:"serial,omitempty"`
	Subject                 RDN      `json:"subject"`
	Issuer                  RDN      `json:"issuer"`
	ValidFrom               string   `json:"validFrom,omitempty"`
	ValidFromTS             int64    `json:"validFromTS"`
	ValidFromKnown          bool     `json:"validFromKnown"`
	ValidTo                 string   `json:"validTo,omitempty"`
	ValidToTS               int64    `json:"validToTS"`
	ValidToKnown            bool     `json:"validToKnown"`
	DaysRemaining           int64    `json:"daysRemaining"`
	SubjectAlternativeNames []string `json:"subjectAlternativeNames"`
	Fingerprint             string   `json:"fingerprint,omitempty"`
}

// FilterWindow holds the parameters of one aggregation pass
type FilterWindow struct {
	// IgnoreIssuedBeforeTS drops certificates whose validFromTS is earlier.
	// Zero means no lower bound.
	IgnoreIssuedBeforeTS int64 `json:"ignoreIssuedBeforeTS"`
	// IgnoreExpiredBeforeTS drops certificates whose validToTS is earlier.
	IgnoreExpiredBeforeTS int64 `json:"ignoreExpiredBeforeTS"`
	// ExpectedCAs are regular expressions matched against the issuer common name.
	ExpectedCAs []string `json:"expectedCAs"`
}

// DefaultIssuedLookback is how far back, in seconds, the default window
// accepts issuance
const DefaultIssuedLookback int64 = 86400

// DefaultWindow returns the window used when the caller supplies no filter:
// certificates issued in the last day that have not expired yet, no expected CAs.
func DefaultWindow(nowTS int64) FilterWindow {
	return FilterWindow{
		IgnoreIssuedBeforeTS:  nowTS - DefaultIssuedLookback,
		IgnoreExpiredBeforeTS: nowTS,
		ExpectedCAs:           []string{},
	}
}

// CertSet is a counted list of certificate records
type CertSet struct {
	Count   int                  `json:"count"`
	Entries []*CertificateRecord `json:"entries"`
}

// CAGroups groups certificate records by issuer common name.
// Count is the number of distinct issuers.
type CAGroups struct {
	Count   int                             `json:"count"`
	Entries map[string][]*CertificateRecord `json:"entries"`
}

// AggregateResult is the classified set of certificates of one check
type AggregateResult struct {
	AllCerts     CertSet  `json:"allCerts"`
	UnexpectedCA CertSet  `json:"unexpectedCA"`
	ByCA         CAGroups `json:"byCA"`
}

// NewAggregateResult returns a zero-valued, ready to fill result
func NewAggregateResult() *AggregateResult {
	return &AggregateResult{
		AllCerts:     CertSet{Entries: []*CertificateRecord{}},
		UnexpectedCA: CertSet{Entries: []*CertificateRecord{}},
		ByCA:         CAGroups{Entries: map[string][]*CertificateRecord{}},
	}
}

// Recount sets the count fields from the entry collections
func (r *AggregateResult) Recount() {
	r.AllCerts.Count = len(r.AllCerts.Entries)
	r.UnexpectedCA.Count = len(r.UnexpectedCA.Entries)
	r.ByCA.Count = len(r.ByCA.Entries)
}

// Merge appends other's buckets to r. Lists are concatenated and CA groups are
// merged by key.
func (r *AggregateResult) Merge(other *AggregateResult) {
	if other == nil {
		return
	}
	r.AllCerts.Entries = append(r.AllCerts.Entries, other.AllCerts.Entries...)
	r.UnexpectedCA.Entries = append(r.UnexpectedCA.Entries, other.UnexpectedCA.Entries...)
	for issuer, records := range other.ByCA.Entries {
		r.ByCA.Entries[issuer] = append(r.ByCA.Entries[issuer], records...)
	}
	r.Recount()
}
