// Package testpki generates throwaway certificate hierarchies for tests.
package testpki

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Cert is a generated certificate with its private key.
type Cert struct {
	Cert *x509.Certificate
	Key  crypto.Signer
	PEM  []byte
}

// KeyPEM returns the private key as a PKCS#8 PEM block.
func (c *Cert) KeyPEM(t testing.TB) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(c.Key)
	if err != nil {
		t.Fatalf("marshal PKCS#8: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func randomSerial(t testing.TB) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatal(err)
	}
	return serial
}

func issue(t testing.TB, tmpl *x509.Certificate, parent *Cert, key crypto.Signer) *Cert {
	t.Helper()
	signerCert, signerKey := tmpl, key
	if parent != nil {
		signerCert, signerKey = parent.Cert, parent.Key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signerCert, key.Public(), signerKey)
	if err != nil {
		t.Fatalf("create certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return &Cert{
		Cert: cert,
		Key:  key,
		PEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func ecKey(t testing.TB) crypto.Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// NewCA creates a CA certificate. A nil parent makes it self-signed.
func NewCA(t testing.TB, cn string, parent *Cert) *Cert {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber:          randomSerial(t),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test PKI"}},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	return issue(t, tmpl, parent, ecKey(t))
}

// NewLeaf creates an ECDSA end-entity certificate signed by parent.
func NewLeaf(t testing.TB, cn string, parent *Cert) *Cert {
	t.Helper()
	return newLeaf(t, cn, parent, ecKey(t))
}

// NewRSALeaf creates an RSA end-entity certificate signed by parent.
func NewRSALeaf(t testing.TB, cn string, parent *Cert) *Cert {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return newLeaf(t, cn, parent, key)
}

func newLeaf(t testing.TB, cn string, parent *Cert, key crypto.Signer) *Cert {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	return issue(t, tmpl, parent, key)
}

// Chain creates a root, an intermediate signed by it, and a leaf signed by
// the intermediate.
func Chain(t testing.TB) (root, intermediate, leaf *Cert) {
	t.Helper()
	root = NewCA(t, "Test Root CA", nil)
	intermediate = NewCA(t, "Test Intermediate CA", root)
	leaf = NewLeaf(t, "leaf.example.com", intermediate)
	return root, intermediate, leaf
}

// Bundle concatenates the PEM blocks of certs in the given order.
func Bundle(certs ...*Cert) []byte {
	var buf bytes.Buffer
	for _, c := range certs {
		buf.Write(c.PEM)
	}
	return buf.Bytes()
}

// WriteFile writes data to name under dir and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
