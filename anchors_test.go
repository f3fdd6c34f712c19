package certpack

import (
	"testing"

	"github.com/sensiblebit/certpack/internal/testpki"
)

const isrgRootX1 = "CN=ISRG Root X1,O=Internet Security Research Group,C=US"

func TestKnownRootSubject(t *testing.T) {
	// WHY: The hint distinguishes "you left out a public root" from "your
	// bundle is missing a private issuer".
	t.Parallel()
	if !KnownRootSubject(isrgRootX1) {
		t.Errorf("%q should be a known root subject", isrgRootX1)
	}
	if KnownRootSubject("CN=Test Root CA,O=Test PKI") {
		t.Error("test CA should not be a known root subject")
	}
}

func TestChainResult_Termination(t *testing.T) {
	// WHY: Each way a chain can end maps to one hint.
	t.Parallel()
	root, inter, leaf := testpki.Chain(t)

	full, err := Reorder(testpki.Bundle(leaf, inter, root), leaf.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := full.Termination(); got != HintSelfIssued {
		t.Errorf("full chain: %v", got)
	}

	partial, err := Reorder(testpki.Bundle(leaf, inter), leaf.KeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := partial.Termination(); got != HintMissingIssuer {
		t.Errorf("partial chain: %v", got)
	}

	public := &ChainResult{Ordered: []*CertificateRecord{{SubjectDN: "CN=R11,O=Let's Encrypt,C=US", IssuerDN: isrgRootX1}}}
	if got := public.Termination(); got != HintKnownRoot {
		t.Errorf("public issuer: %v", got)
	}
}
