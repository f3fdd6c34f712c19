package internal

import (
	"crypto/x509"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sensiblebit/certpack"
	"github.com/sensiblebit/certpack/internal/testpki"
)

func TestInspectData_Containers(t *testing.T) {
	// WHY: inspect is how a user checks a produced artifact; each container format the pipelines write must be recognized and listed in order.
	t.Parallel()
	root, inter, leaf := testpki.Chain(t)
	cas := []*x509.Certificate{inter.Cert, root.Cert}

	pfx, err := certpack.EncodePKCS12(leaf.Key, leaf.Cert, cas, "changeit")
	if err != nil {
		t.Fatal(err)
	}
	jks, err := certpack.EncodeJKS(leaf.Key, leaf.Cert, cas, "server", "changeit")
	if err != nil {
		t.Fatal(err)
	}
	p7b, err := certpack.EncodePKCS7([]*x509.Certificate{leaf.Cert, inter.Cert, root.Cert})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		data      []byte
		container string
		wantTypes []string
	}{
		{"pem", append(testpki.Bundle(leaf, inter, root), leaf.KeyPEM(t)...), "pem", []string{"certificate", "certificate", "certificate", "private_key"}},
		{"pkcs12", pfx, "pkcs12", []string{"certificate", "certificate", "certificate", "private_key"}},
		{"jks", jks, "jks", []string{"certificate", "certificate", "certificate", "private_key"}},
		{"pkcs7", p7b, "pkcs7", []string{"certificate", "certificate", "certificate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			results, err := InspectData(tt.data, "changeit")
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != len(tt.wantTypes) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.wantTypes))
			}
			for i, r := range results {
				if r.Type != tt.wantTypes[i] || r.Container != tt.container {
					t.Errorf("result %d = %s/%s, want %s/%s", i, r.Type, r.Container, tt.wantTypes[i], tt.container)
				}
			}
			if results[0].Subject != "CN=leaf.example.com" || results[0].CertType != "leaf" {
				t.Errorf("first result = %+v, want the leaf", results[0])
			}
		})
	}
}

func TestInspectData_Truststore(t *testing.T) {
	// WHY: Trusted entries are labeled separately from key entry chains.
	t.Parallel()
	root := testpki.NewCA(t, "Root", nil)
	ks := certpack.NewKeystore()
	if err := ks.SetTrustedCertificateEntry("corp-root", root.Cert); err != nil {
		t.Fatal(err)
	}
	data, err := ks.Marshal("changeit")
	if err != nil {
		t.Fatal(err)
	}
	results, err := InspectData(data, "changeit")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Type != "trusted_certificate" || results[0].Alias != "corp-root" || results[0].CertType != "root" {
		t.Errorf("results = %+v", results)
	}
	text, err := FormatInspectResults(results, "text")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "[corp-root] Trusted Certificate (jks):") {
		t.Errorf("text = %q", text)
	}
}

func TestInspectData_Unrecognized(t *testing.T) {
	// WHY: Garbage and wrong passwords must error rather than report an empty container.
	t.Parallel()
	if _, err := InspectData([]byte("not a container"), "changeit"); err == nil {
		t.Error("expected error for unrecognized data")
	}
	_, _, leaf := testpki.Chain(t)
	pfx, err := certpack.EncodePKCS12(leaf.Key, leaf.Cert, nil, "changeit")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := InspectData(pfx, "wrong-password"); err == nil {
		t.Error("expected error for wrong PKCS#12 password")
	}
}

func TestFormatInspectResults_JSON(t *testing.T) {
	// WHY: JSON output is consumed by scripts; it must round-trip and reject unknown formats.
	t.Parallel()
	in := []InspectResult{{Type: "certificate", Container: "pem", Subject: "CN=a"}}
	out, err := FormatInspectResults(in, "json")
	if err != nil {
		t.Fatal(err)
	}
	var got []InspectResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Subject != "CN=a" {
		t.Errorf("got %+v", got)
	}
	if _, err := FormatInspectResults(in, "yaml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
