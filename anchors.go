package certpack

import (
	"crypto/x509"
	"encoding/pem"
	"sync"

	"github.com/breml/rootcerts/embedded"
)

var (
	mozillaSubjectsOnce sync.Once
	mozillaSubjects     map[string]bool
)

// loadMozillaSubjects indexes the canonical subject DNs of the embedded
// Mozilla root store. Unparseable entries are skipped.
func loadMozillaSubjects() {
	mozillaSubjects = make(map[string]bool)
	rest := []byte(embedded.MozillaCACertificatesPEM())
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		dn, err := CanonicalDN(cert.RawSubject)
		if err != nil {
			continue
		}
		mozillaSubjects[dn] = true
	}
}

// KnownRootSubject reports whether dn is the subject of a root in the
// embedded Mozilla trust store. The match is on the DN string only and says
// nothing about signatures; it lets a chain that stops at an absent issuer be
// told apart from one that stops at a well-known anchor left out of the bundle.
func KnownRootSubject(dn string) bool {
	mozillaSubjectsOnce.Do(loadMozillaSubjects)
	return mozillaSubjects[dn]
}

// TrustHint describes how an ordered chain terminates.
type TrustHint int

const (
	// HintSelfIssued means the chain ends at a self-issued certificate.
	HintSelfIssued TrustHint = iota
	// HintKnownRoot means the final issuer is absent but is a Mozilla root subject.
	HintKnownRoot
	// HintMissingIssuer means the final issuer is absent and not a known root.
	HintMissingIssuer
)

// String returns a short description for logs.
func (h TrustHint) String() string {
	switch h {
	case HintSelfIssued:
		return "ends at self-issued certificate"
	case HintKnownRoot:
		return "issuer not in bundle; matches a Mozilla root subject"
	case HintMissingIssuer:
		return "issuer not in bundle"
	default:
		return "unknown"
	}
}

// Termination classifies the end of the linked chain.
func (r *ChainResult) Termination() TrustHint {
	if r.EndsAtSelfIssued() {
		return HintSelfIssued
	}
	if last := r.Last(); last != nil && KnownRootSubject(last.IssuerDN) {
		return HintKnownRoot
	}
	return HintMissingIssuer
}
