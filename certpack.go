// Package certpack orders unordered PEM certificate bundles into a leaf-first
// chain using a private key to locate the leaf, and packages the result into
// PKCS#12, PKCS#7 and Java KeyStore containers.
package certpack

import (
	"crypto"
	"crypto/dsa" //nolint:staticcheck // needed for legacy DSA certificate key identification
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// normalizeKey converts non-standard private key representations to their
// canonical Go form. Currently this dereferences *ed25519.PrivateKey (returned
// by ssh.ParseRawPrivateKey) to the value type ed25519.PrivateKey.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if ptr, ok := key.(*ed25519.PrivateKey); ok {
		return *ptr
	}
	return key
}

// ParsePEMPrivateKey parses an unencrypted PEM-encoded private key (PKCS#1,
// PKCS#8, SEC 1 EC, or OpenSSH). For "PRIVATE KEY" blocks it tries PKCS#8
// first, then falls back to PKCS#1 and EC parsers to handle mislabeled keys.
// Leading non-key blocks (certificates bundled into the same file) are skipped.
func ParsePEMPrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, &ParseError{Msg: "no PEM private key block found"}
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}
		key, err := parseKeyBlock(block)
		if err != nil {
			return nil, &ParseError{Msg: fmt.Sprintf("parsing %s block", block.Type), Err: err}
		}
		return key, nil
	}
}

func parseKeyBlock(block *pem.Block) (crypto.PrivateKey, error) {
	//nolint:staticcheck // x509.IsEncryptedPEMBlock is deprecated but still the only RFC 1423 detector
	if x509.IsEncryptedPEMBlock(block) {
		return nil, errors.New("encrypted private keys are not supported")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			return normalizeKey(key), nil
		}
		// Fall back: some tools label PKCS#1 keys as "PRIVATE KEY"
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		return nil, errors.New("no known PRIVATE KEY format matched")
	case "OPENSSH PRIVATE KEY":
		// OpenSSH format uses a proprietary encoding; delegate to x/crypto/ssh
		key, err := ssh.ParseRawPrivateKey(pem.EncodeToMemory(block))
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// GetPublicKey extracts the public key from a private key via crypto.Signer.
func GetPublicKey(priv crypto.PrivateKey) (crypto.PublicKey, error) {
	if signer, ok := priv.(crypto.Signer); ok {
		return signer.Public(), nil
	}
	return nil, fmt.Errorf("unsupported private key type: %T", priv)
}

// PublicKeyFingerprint returns the canonical public-key material used for
// leaf matching. RSA keys yield "rsa:" and the uppercase hex modulus (the
// value openssl prints for -modulus); other key types yield the algorithm
// name and the SHA-256 of the PKIX encoding.
func PublicKeyFingerprint(pub crypto.PublicKey) (string, error) {
	return publicKeyFingerprint(pub, nil)
}

// KeyFingerprint returns PublicKeyFingerprint of the private key's public half.
func KeyFingerprint(priv crypto.PrivateKey) (string, error) {
	pub, err := GetPublicKey(normalizeKey(priv))
	if err != nil {
		return "", err
	}
	return PublicKeyFingerprint(pub)
}

// publicKeyFingerprint falls back to rawSPKI when the key cannot be
// re-marshaled (DSA keys parsed from certificates).
func publicKeyFingerprint(pub crypto.PublicKey, rawSPKI []byte) (string, error) {
	if rsaKey, ok := pub.(*rsa.PublicKey); ok {
		return "rsa:" + strings.ToUpper(rsaKey.N.Text(16)), nil
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		if len(rawSPKI) == 0 {
			return "", fmt.Errorf("marshaling %T public key: %w", pub, err)
		}
		der = rawSPKI
	}
	sum := sha256.Sum256(der)
	return fmt.Sprintf("%s:sha256:%s", strings.ToLower(PublicKeyAlgorithmName(pub)), hex.EncodeToString(sum[:])), nil
}

// KeyMatchesCert reports whether a private key corresponds to the public key
// in a certificate. Uses the Equal method available on all standard public key
// types, which handles cross-type mismatches by returning false.
func KeyMatchesCert(priv crypto.PrivateKey, cert *x509.Certificate) (bool, error) {
	pub, err := GetPublicKey(normalizeKey(priv))
	if err != nil {
		return false, err
	}
	type equalKey interface {
		Equal(crypto.PublicKey) bool
	}
	eq, ok := pub.(equalKey)
	if !ok {
		return false, fmt.Errorf("unsupported public key type: %T", pub)
	}
	return eq.Equal(cert.PublicKey), nil
}

// PublicKeyAlgorithmName returns a human-readable name for a public key's algorithm.
func PublicKeyAlgorithmName(key crypto.PublicKey) string {
	switch key.(type) {
	case *ecdsa.PublicKey:
		return "ECDSA"
	case *rsa.PublicKey:
		return "RSA"
	case ed25519.PublicKey, *ed25519.PublicKey:
		return "Ed25519"
	case *dsa.PublicKey:
		return "DSA"
	default:
		return "unknown"
	}
}

// KeyDescription returns a human-readable description of the certificate's
// public key, including bit length for RSA and curve name for ECDSA.
func KeyDescription(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d bits", pub.N.BitLen())
	case *ecdsa.PublicKey:
		return fmt.Sprintf("ECDSA %s", pub.Curve.Params().Name)
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return PublicKeyAlgorithmName(pub)
	}
}

// CertToPEM encodes a certificate as PEM.
func CertToPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	}))
}

// CertFingerprint returns the SHA-256 fingerprint of a certificate as a lowercase hex string.
func CertFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:])
}
