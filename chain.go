package certpack

import (
	"bytes"
	"crypto"
	"slices"
)

// ChainResult holds a leaf-first chain and the records that could not be
// placed in it.
type ChainResult struct {
	// Ordered starts with the leaf; each following record's subject DN
	// equals the issuer DN of the record before it.
	Ordered []*CertificateRecord
	// Unlinked are the remaining input records, in input order.
	Unlinked []*CertificateRecord
	// Ambiguities lists walk steps where more than one unplaced record
	// matched the current issuer. The first match was taken.
	Ambiguities []Ambiguity
}

// Ambiguity records a branching point in the issuance graph: either several
// records could issue Issued, or Chosen issued other records in the bundle
// besides Issued. Each record is reported in at most one Ambiguity.
type Ambiguity struct {
	// Issued is the record whose issuer DN was being resolved.
	Issued *CertificateRecord
	// Chosen is the record that was linked.
	Chosen *CertificateRecord
	// Skipped were also candidate issuers but were not linked.
	Skipped []*CertificateRecord
	// Siblings share Issued's issuer DN and are left out of the chain.
	Siblings []*CertificateRecord
}

// FindLeaf returns the first record whose public key fingerprint matches
// the given private key. Duplicate certificates for the same key resolve to
// the earliest in input order.
func FindLeaf(records []*CertificateRecord, key crypto.PrivateKey) (*CertificateRecord, error) {
	fp, err := KeyFingerprint(key)
	if err != nil {
		return nil, &ParseError{Msg: "computing private key fingerprint", Err: err}
	}
	for _, r := range records {
		if r.PublicKeyFingerprint == fp {
			return r, nil
		}
	}
	return nil, &NoMatchingLeafError{Count: len(records)}
}

// BuildChain walks the issuance relation from leaf. At each step it links
// the first unplaced record whose subject DN equals the current issuer DN,
// and stops when there is none. Branches met along the way are recorded in
// Ambiguities. A self-signed root terminates the walk
// because it is already placed. Every input record ends up in exactly one of
// Ordered or Unlinked.
func BuildChain(records []*CertificateRecord, leaf *CertificateRecord) *ChainResult {
	placed := make(map[*CertificateRecord]bool, len(records))
	reported := make(map[*CertificateRecord]bool)
	result := &ChainResult{Ordered: []*CertificateRecord{leaf}}
	placed[leaf] = true

	current := leaf
	for {
		var candidates, siblings []*CertificateRecord
		for _, r := range records {
			if !placed[r] && r.SubjectDN == current.IssuerDN {
				candidates = append(candidates, r)
			}
		}
		if len(candidates) == 0 {
			break
		}
		for _, r := range records {
			if !placed[r] && !reported[r] && r.IssuerDN == current.IssuerDN && !slices.Contains(candidates, r) {
				siblings = append(siblings, r)
			}
		}
		next := candidates[0]
		if len(candidates) > 1 || len(siblings) > 0 {
			a := Ambiguity{Issued: current, Chosen: next, Siblings: siblings}
			if len(candidates) > 1 {
				a.Skipped = slices.Clone(candidates[1:])
			}
			for _, r := range slices.Concat(a.Skipped, a.Siblings) {
				reported[r] = true
			}
			result.Ambiguities = append(result.Ambiguities, a)
		}
		result.Ordered = append(result.Ordered, next)
		placed[next] = true
		current = next
	}

	for _, r := range records {
		if !placed[r] {
			result.Unlinked = append(result.Unlinked, r)
			// Guard against the same pointer appearing twice in records.
			placed[r] = true
		}
	}
	return result
}

// Reorder parses bundle, locates the leaf for keyPEM, and builds the chain.
func Reorder(bundle, keyPEM []byte) (*ChainResult, error) {
	records, err := ParseBundle(bundle)
	if err != nil {
		return nil, err
	}
	key, err := ParsePEMPrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}
	leaf, err := FindLeaf(records, key)
	if err != nil {
		return nil, err
	}
	return BuildChain(records, leaf), nil
}

// Leaf returns the first ordered record.
func (r *ChainResult) Leaf() *CertificateRecord {
	if len(r.Ordered) == 0 {
		return nil
	}
	return r.Ordered[0]
}

// All returns Ordered followed by Unlinked.
func (r *ChainResult) All() []*CertificateRecord {
	return slices.Concat(r.Ordered, r.Unlinked)
}

// Incomplete returns a warning listing the unlinked records, or nil when
// every input record was placed in the chain.
func (r *ChainResult) Incomplete() *ChainIncompleteWarning {
	if len(r.Unlinked) == 0 {
		return nil
	}
	return &ChainIncompleteWarning{Unlinked: slices.Clone(r.Unlinked)}
}

// Last returns the final record of the linked chain.
func (r *ChainResult) Last() *CertificateRecord {
	if len(r.Ordered) == 0 {
		return nil
	}
	return r.Ordered[len(r.Ordered)-1]
}

// EndsAtSelfIssued reports whether the linked chain terminates at a record
// whose issuer equals its own subject.
func (r *ChainResult) EndsAtSelfIssued() bool {
	last := r.Last()
	return last != nil && last.SelfIssued()
}

// PEM concatenates the original PEM blocks, ordered records first and
// unlinked records last.
func (r *ChainResult) PEM() []byte {
	var buf bytes.Buffer
	for _, rec := range r.All() {
		buf.Write(rec.RawPEM)
	}
	return buf.Bytes()
}
