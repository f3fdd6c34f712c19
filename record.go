package certpack

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	beginCertificate = "-----BEGIN CERTIFICATE-----"
	endCertificate   = "-----END CERTIFICATE-----"
)

// CertificateRecord is one certificate parsed out of an input bundle.
// Records are compared by pointer identity; two records may share a
// subject DN and are still distinct.
type CertificateRecord struct {
	// RawPEM is the certificate's PEM block as found in the input, ending
	// with the end marker and a newline. It is re-emitted verbatim.
	RawPEM []byte
	// SubjectDN and IssuerDN are RFC 2253 serializations of the raw names.
	SubjectDN string
	IssuerDN  string
	// PublicKeyFingerprint is the canonical public-key material used to
	// match the leaf against a private key (see PublicKeyFingerprint).
	PublicKeyFingerprint string
	// Segment is the 1-based position of the record in the input bundle.
	Segment int
	// Cert is the parsed certificate.
	Cert *x509.Certificate
}

// String identifies the record for diagnostics.
func (r *CertificateRecord) String() string {
	return fmt.Sprintf("#%d subject=%s, issuer=%s", r.Segment, r.SubjectDN, r.IssuerDN)
}

// SelfIssued reports whether the record's issuer DN equals its subject DN.
func (r *CertificateRecord) SelfIssued() bool {
	return r.SubjectDN == r.IssuerDN
}

// SplitPEMSegments splits bundle text on certificate end markers and returns
// one complete PEM block per certificate. Text before a begin marker
// (comments, key blocks, whitespace) is dropped. A segment holding two begin
// markers, or a trailing begin marker with no end marker after it, is a
// truncated block and fails with a ParseError naming the segment.
func SplitPEMSegments(text []byte) ([][]byte, error) {
	begin := []byte(beginCertificate)
	end := []byte(endCertificate)

	pieces := bytes.Split(bytes.TrimSpace(text), end)
	var segments [][]byte
	for i, piece := range pieces {
		idx := bytes.Index(piece, begin)
		if idx < 0 {
			continue
		}
		n := len(segments) + 1
		if bytes.Count(piece, begin) > 1 {
			return nil, &ParseError{Segment: n, Msg: "missing END CERTIFICATE marker"}
		}
		// bytes.Split leaves the text after the final end marker as the last
		// piece; a begin marker there was never closed.
		if i == len(pieces)-1 {
			return nil, &ParseError{Segment: n, Msg: "missing END CERTIFICATE marker"}
		}

		seg := make([]byte, 0, len(piece)-idx+len(end)+1)
		seg = append(seg, piece[idx:]...)
		seg = append(seg, end...)
		seg = append(seg, '\n')
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, &ParseError{Msg: "no PEM certificate blocks found"}
	}
	return segments, nil
}

// ParseBundle parses every certificate block in text into a CertificateRecord,
// preserving input order. It fails with a ParseError when the text holds no
// certificate blocks or when any block is not a well-formed X.509 certificate.
func ParseBundle(text []byte) ([]*CertificateRecord, error) {
	segments, err := SplitPEMSegments(text)
	if err != nil {
		return nil, err
	}

	records := make([]*CertificateRecord, 0, len(segments))
	for i, seg := range segments {
		rec, err := parseSegment(seg, i+1)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseSegment(seg []byte, n int) (*CertificateRecord, error) {
	block, _ := pem.Decode(seg)
	if block == nil {
		return nil, &ParseError{Segment: n, Msg: "invalid PEM encoding"}
	}
	if block.Type != "CERTIFICATE" {
		return nil, &ParseError{Segment: n, Msg: fmt.Sprintf("unexpected PEM block type %q", block.Type)}
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, &ParseError{Segment: n, Msg: "parsing certificate", Err: err}
	}

	subject, err := CanonicalDN(cert.RawSubject)
	if err != nil {
		return nil, &ParseError{Segment: n, Msg: "extracting subject", Err: err}
	}
	issuer, err := CanonicalDN(cert.RawIssuer)
	if err != nil {
		return nil, &ParseError{Segment: n, Msg: "extracting issuer", Err: err}
	}

	fp, err := publicKeyFingerprint(cert.PublicKey, cert.RawSubjectPublicKeyInfo)
	if err != nil {
		return nil, &ParseError{Segment: n, Msg: "computing public key fingerprint", Err: err}
	}

	return &CertificateRecord{
		RawPEM:               seg,
		SubjectDN:            subject,
		IssuerDN:             issuer,
		PublicKeyFingerprint: fp,
		Segment:              n,
		Cert:                 cert,
	}, nil
}

// CanonicalDN serializes a DER-encoded distinguished name in RFC 2253 form,
// most specific RDN first, keeping the attribute order found in the
// certificate. An empty name is an error.
func CanonicalDN(raw []byte) (string, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(raw, &rdns)
	if err != nil {
		return "", fmt.Errorf("decoding name: %w", err)
	}
	if len(rest) > 0 {
		return "", errors.New("trailing data after name")
	}
	dn := rdns.String()
	if dn == "" {
		return "", errors.New("empty distinguished name")
	}
	return dn, nil
}

// Certificates returns the parsed certificates of records in order.
func Certificates(records []*CertificateRecord) []*x509.Certificate {
	certs := make([]*x509.Certificate, 0, len(records))
	for _, r := range records {
		certs = append(certs, r.Cert)
	}
	return certs
}
