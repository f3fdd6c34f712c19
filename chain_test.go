package certpack

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sensiblebit/certpack/internal/testpki"
)

func subjects(records []*CertificateRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Cert.Subject.CommonName)
	}
	return out
}

func TestReorder_ShuffledAndPartialBundles(t *testing.T) {
	// WHY: These are the canonical orderings: shuffled full chain, missing
	// intermediate, and an unrelated extra certificate.
	t.Parallel()
	root, inter, leaf := testpki.Chain(t)
	other := testpki.NewCA(t, "Unrelated CA", nil)

	tests := []struct {
		name         string
		bundle       []byte
		wantOrdered  []string
		wantUnlinked []string
	}{
		{
			name:        "shuffled full chain",
			bundle:      testpki.Bundle(root, leaf, inter),
			wantOrdered: []string{"leaf.example.com", "Test Intermediate CA", "Test Root CA"},
		},
		{
			name:        "already ordered",
			bundle:      testpki.Bundle(leaf, inter, root),
			wantOrdered: []string{"leaf.example.com", "Test Intermediate CA", "Test Root CA"},
		},
		{
			name:         "missing intermediate",
			bundle:       testpki.Bundle(root, leaf),
			wantOrdered:  []string{"leaf.example.com"},
			wantUnlinked: []string{"Test Root CA"},
		},
		{
			name:         "unrelated extra",
			bundle:       testpki.Bundle(other, root, leaf, inter),
			wantOrdered:  []string{"leaf.example.com", "Test Intermediate CA", "Test Root CA"},
			wantUnlinked: []string{"Unrelated CA"},
		},
		{
			name:        "leaf only",
			bundle:      testpki.Bundle(leaf),
			wantOrdered: []string{"leaf.example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := Reorder(tt.bundle, leaf.KeyPEM(t))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.wantOrdered, subjects(result.Ordered), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ordered mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantUnlinked, subjects(result.Unlinked), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("unlinked mismatch (-want +got):\n%s", diff)
			}
			if w := result.Incomplete(); (w != nil) != (len(tt.wantUnlinked) > 0) {
				t.Errorf("Incomplete() = %v, want warning=%v", w, len(tt.wantUnlinked) > 0)
			}
		})
	}
}

func TestReorder_NoMatchingLeaf(t *testing.T) {
	// WHY: A key that matches nothing is fatal and must say how many
	// certificates were checked.
	t.Parallel()
	root, inter, _ := testpki.Chain(t)
	stranger := testpki.NewLeaf(t, "stranger.example.com", root)

	_, err := Reorder(testpki.Bundle(root, inter), stranger.KeyPEM(t))
	var nm *NoMatchingLeafError
	if !errors.As(err, &nm) {
		t.Fatalf("expected *NoMatchingLeafError, got %v", err)
	}
	if nm.Count != 2 {
		t.Errorf("Count = %d, want 2", nm.Count)
	}
}

func TestReorder_RSALeaf(t *testing.T) {
	// WHY: RSA leaves are matched on the modulus, the same value openssl
	// compares with -modulus.
	t.Parallel()
	root := testpki.NewCA(t, "RSA Root", nil)
	leaf := testpki.NewRSALeaf(t, "rsa.example.com", root)
	result, err := Reorder(testpki.Bundle(root, leaf), leaf.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"rsa.example.com", "RSA Root"}, subjects(result.Ordered)); diff != "" {
		t.Errorf("ordered mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildChain_Properties(t *testing.T) {
	// WHY: The output must be a partition of the input, each adjacent pair
	// must link, and reordering its own output must be a no-op.
	t.Parallel()
	root, inter, leaf := testpki.Chain(t)
	other := testpki.NewCA(t, "Unrelated CA", nil)
	otherLeaf := testpki.NewLeaf(t, "other.example.com", other)
	bundle := testpki.Bundle(otherLeaf, root, other, leaf, inter)

	first, err := Reorder(bundle, leaf.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}

	all := first.All()
	if len(all) != 5 {
		t.Fatalf("got %d records, want 5", len(all))
	}
	seen := make(map[*CertificateRecord]bool)
	for _, r := range all {
		if seen[r] {
			t.Errorf("record %s emitted twice", r)
		}
		seen[r] = true
	}
	for i := 1; i < len(first.Ordered); i++ {
		if first.Ordered[i].SubjectDN != first.Ordered[i-1].IssuerDN {
			t.Errorf("ordered[%d] does not issue ordered[%d]", i, i-1)
		}
	}
	// Unlinked keeps input order.
	if diff := cmp.Diff([]string{"other.example.com", "Unrelated CA"}, subjects(first.Unlinked)); diff != "" {
		t.Errorf("unlinked mismatch (-want +got):\n%s", diff)
	}

	second, err := Reorder(first.PEM(), leaf.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.PEM(), second.PEM()) {
		t.Error("reordering the output changed it")
	}
}

func TestBuildChain_DuplicateSubjectsRecordAmbiguity(t *testing.T) {
	// WHY: Two intermediates with the same subject (a cross-sign or a
	// renewal) leave the walk with a choice. The first in input order wins
	// and the other is reported.
	t.Parallel()
	root := testpki.NewCA(t, "Root", nil)
	interA := testpki.NewCA(t, "Shared Intermediate", root)
	interB := testpki.NewCA(t, "Shared Intermediate", root)
	leaf := testpki.NewLeaf(t, "dup.example.com", interB)

	records, err := ParseBundle(testpki.Bundle(leaf, interA, interB, root))
	if err != nil {
		t.Fatal(err)
	}
	result := BuildChain(records, records[0])

	if result.Ordered[1] != records[1] {
		t.Errorf("expected first intermediate in input order to be linked, got %s", result.Ordered[1])
	}
	if len(result.Ambiguities) != 1 {
		t.Fatalf("got %d ambiguities, want 1", len(result.Ambiguities))
	}
	amb := result.Ambiguities[0]
	if amb.Issued != records[0] || amb.Chosen != records[1] {
		t.Errorf("ambiguity = %+v", amb)
	}
	if len(amb.Skipped) != 1 || amb.Skipped[0] != records[2] {
		t.Errorf("skipped = %v, want second intermediate", amb.Skipped)
	}
	if len(amb.Siblings) != 0 {
		t.Errorf("siblings = %v, want none; the skipped intermediate is reported once", amb.Siblings)
	}
	if got := len(result.Ordered) + len(result.Unlinked); got != 4 {
		t.Errorf("partition has %d records, want 4", got)
	}
}

func TestBuildChain_SiblingsRecordAmbiguity(t *testing.T) {
	// WHY: An intermediate that issued two leaves in the bundle is a branch
	// too; the leaf not on the chain must be reported, not just unlinked.
	t.Parallel()
	root, inter, leaf := testpki.Chain(t)
	other := testpki.NewLeaf(t, "other.example.com", inter)

	records, err := ParseBundle(testpki.Bundle(leaf, other, inter, root))
	if err != nil {
		t.Fatal(err)
	}
	result := BuildChain(records, records[0])

	if diff := cmp.Diff([]string{"leaf.example.com", "Test Intermediate CA", "Test Root CA"}, subjects(result.Ordered)); diff != "" {
		t.Errorf("ordered mismatch (-want +got):\n%s", diff)
	}
	if len(result.Ambiguities) != 1 {
		t.Fatalf("got %d ambiguities, want 1", len(result.Ambiguities))
	}
	amb := result.Ambiguities[0]
	if amb.Issued != records[0] || amb.Chosen != records[2] {
		t.Errorf("ambiguity = %+v", amb)
	}
	if len(amb.Skipped) != 0 {
		t.Errorf("skipped = %v, want none", amb.Skipped)
	}
	if len(amb.Siblings) != 1 || amb.Siblings[0] != records[1] {
		t.Errorf("siblings = %v, want other.example.com", amb.Siblings)
	}
	if len(result.Unlinked) != 1 || result.Unlinked[0] != records[1] {
		t.Errorf("unlinked = %v", result.Unlinked)
	}
}

func TestBuildChain_SelfSignedLeaf(t *testing.T) {
	// WHY: A self-signed leaf is its own issuer; the walk must stop instead
	// of linking it to itself.
	t.Parallel()
	self := testpki.NewCA(t, "Self Signed", nil)
	result, err := Reorder(self.PEM, self.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Ordered) != 1 || len(result.Unlinked) != 0 {
		t.Errorf("ordered=%d unlinked=%d, want 1 and 0", len(result.Ordered), len(result.Unlinked))
	}
	if !result.EndsAtSelfIssued() {
		t.Error("EndsAtSelfIssued() = false")
	}
}

func TestFindLeaf_DuplicateLeafFirstWins(t *testing.T) {
	// WHY: The same leaf pasted twice must resolve to the earlier copy, with
	// the later one reported as unlinked.
	t.Parallel()
	root, _, leaf := testpki.Chain(t)
	records, err := ParseBundle(testpki.Bundle(root, leaf, leaf))
	if err != nil {
		t.Fatal(err)
	}
	key, err := ParsePEMPrivateKey(leaf.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	got, err := FindLeaf(records, key)
	if err != nil {
		t.Fatal(err)
	}
	if got != records[1] {
		t.Errorf("FindLeaf returned segment %d, want 2", got.Segment)
	}
	result := BuildChain(records, got)
	if len(result.Unlinked) != 2 {
		t.Errorf("unlinked = %d, want 2", len(result.Unlinked))
	}
}

func TestChainResult_Accessors(t *testing.T) {
	// WHY: Downstream packaging takes the leaf and chain from these helpers.
	t.Parallel()
	var empty ChainResult
	if empty.Leaf() != nil || empty.Last() != nil || empty.EndsAtSelfIssued() {
		t.Error("empty result accessors should be nil/false")
	}
	if empty.Incomplete() != nil {
		t.Error("empty result should not be incomplete")
	}

	rec := &CertificateRecord{
		SubjectDN: "CN=a",
		IssuerDN:  "CN=b",
		Cert:      &x509.Certificate{Subject: pkix.Name{CommonName: "a"}},
		RawPEM:    []byte("A\n"),
	}
	extra := &CertificateRecord{SubjectDN: "CN=x", IssuerDN: "CN=x", RawPEM: []byte("X\n")}
	r := ChainResult{Ordered: []*CertificateRecord{rec}, Unlinked: []*CertificateRecord{extra}}
	if r.Leaf() != rec || r.Last() != rec {
		t.Error("Leaf/Last mismatch")
	}
	if got := string(r.PEM()); got != "A\nX\n" {
		t.Errorf("PEM() = %q", got)
	}
	w := r.Incomplete()
	if w == nil || len(w.Unlinked) != 1 {
		t.Fatalf("Incomplete() = %v", w)
	}
	if IsFatal(w) {
		t.Error("incomplete chain warning must not be fatal")
	}
}
