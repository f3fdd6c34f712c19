package certpack

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// Keystore is a Java KeyStore (JKS) held in memory. Aliases are stored
// lowercased, matching keytool's JKS behavior. Entries are protected with the
// store password (standard Java convention).
type Keystore struct {
	ks keystore.KeyStore
}

// NewKeystore returns an empty keystore.
func NewKeystore() *Keystore {
	return &Keystore{ks: keystore.New(keystore.WithOrderedAliases())}
}

// LoadKeystore decodes a JKS file, verifying its integrity with password.
func LoadKeystore(data []byte, password string) (*Keystore, error) {
	k := NewKeystore()
	if err := k.ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return nil, fmt.Errorf("loading JKS: %w", err)
	}
	return k, nil
}

// SetPrivateKeyEntry stores key under alias with its certificate chain,
// leaf first. An existing entry with the same alias is replaced.
func (k *Keystore) SetPrivateKeyEntry(alias string, key crypto.PrivateKey, chain []*x509.Certificate, password string) error {
	if len(chain) == 0 || chain[0] == nil {
		return errors.New("leaf certificate cannot be nil")
	}
	pkcs8Key, err := x509.MarshalPKCS8PrivateKey(normalizeKey(key))
	if err != nil {
		return fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}

	certs := make([]keystore.Certificate, 0, len(chain))
	for _, c := range chain {
		certs = append(certs, keystore.Certificate{Type: "X.509", Content: c.Raw})
	}

	if err := k.ks.SetPrivateKeyEntry(alias, keystore.PrivateKeyEntry{
		CreationTime:     time.Now(),
		PrivateKey:       pkcs8Key,
		CertificateChain: certs,
	}, []byte(password)); err != nil {
		return fmt.Errorf("setting JKS private key entry %q: %w", alias, err)
	}
	return nil
}

// SetTrustedCertificateEntry stores cert under alias as a trust anchor.
func (k *Keystore) SetTrustedCertificateEntry(alias string, cert *x509.Certificate) error {
	if cert == nil {
		return errors.New("certificate cannot be nil")
	}
	if err := k.ks.SetTrustedCertificateEntry(alias, keystore.TrustedCertificateEntry{
		CreationTime: time.Now(),
		Certificate:  keystore.Certificate{Type: "X.509", Content: cert.Raw},
	}); err != nil {
		return fmt.Errorf("setting JKS trusted certificate entry %q: %w", alias, err)
	}
	return nil
}

// Aliases returns the stored aliases in sorted order.
func (k *Keystore) Aliases() []string {
	return k.ks.Aliases()
}

// IsPrivateKeyEntry reports whether alias holds a private key entry.
func (k *Keystore) IsPrivateKeyEntry(alias string) bool {
	return k.ks.IsPrivateKeyEntry(alias)
}

// IsTrustedCertificateEntry reports whether alias holds a trusted certificate.
func (k *Keystore) IsTrustedCertificateEntry(alias string) bool {
	return k.ks.IsTrustedCertificateEntry(alias)
}

// PrivateKeyEntry returns the key and chain stored under alias.
func (k *Keystore) PrivateKeyEntry(alias, password string) (crypto.PrivateKey, []*x509.Certificate, error) {
	entry, err := k.ks.GetPrivateKeyEntry(alias, []byte(password))
	if err != nil {
		return nil, nil, fmt.Errorf("reading JKS entry %q: %w", alias, err)
	}
	key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JKS entry %q key: %w", alias, err)
	}
	chain := make([]*x509.Certificate, 0, len(entry.CertificateChain))
	for _, c := range entry.CertificateChain {
		cert, err := x509.ParseCertificate(c.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing JKS entry %q chain: %w", alias, err)
		}
		chain = append(chain, cert)
	}
	return key, chain, nil
}

// TrustedCertificate returns the certificate stored under alias.
func (k *Keystore) TrustedCertificate(alias string) (*x509.Certificate, error) {
	entry, err := k.ks.GetTrustedCertificateEntry(alias)
	if err != nil {
		return nil, fmt.Errorf("reading JKS entry %q: %w", alias, err)
	}
	cert, err := x509.ParseCertificate(entry.Certificate.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing JKS entry %q certificate: %w", alias, err)
	}
	return cert, nil
}

// Marshal encodes the keystore, signing it with password.
func (k *Keystore) Marshal(password string) ([]byte, error) {
	var buf bytes.Buffer
	if err := k.ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJKS creates a keystore holding a single private key entry under
// alias. The leaf certificate and CA certs form the entry's chain.
func EncodeJKS(privateKey crypto.PrivateKey, leaf *x509.Certificate, caCerts []*x509.Certificate, alias, password string) ([]byte, error) {
	k := NewKeystore()
	chain := append([]*x509.Certificate{leaf}, caCerts...)
	if err := k.SetPrivateKeyEntry(alias, privateKey, chain, password); err != nil {
		return nil, err
	}
	return k.Marshal(password)
}
