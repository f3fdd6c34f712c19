package internal

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sensiblebit/certpack"
)

// InspectResult holds the inspection details for one object in a file.
type InspectResult struct {
	Type      string   `json:"type"`
	Container string   `json:"container"`
	Alias     string   `json:"alias,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Issuer    string   `json:"issuer,omitempty"`
	Serial    string   `json:"serial,omitempty"`
	NotBefore string   `json:"not_before,omitempty"`
	NotAfter  string   `json:"not_after,omitempty"`
	CertType  string   `json:"cert_type,omitempty"`
	KeyAlgo   string   `json:"key_algorithm,omitempty"`
	KeySize   string   `json:"key_size,omitempty"`
	SANs      []string `json:"sans,omitempty"`
	SHA256    string   `json:"sha256_fingerprint,omitempty"`
	SigAlg    string   `json:"signature_algorithm,omitempty"`
}

var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// InspectFile reads a PEM chain, PKCS#7, PKCS#12, or JKS file and returns
// inspection results for every certificate and key it holds. password is
// only needed for PKCS#12 and JKS.
func InspectFile(path, password string) ([]InspectResult, error) {
	data, err := ReadInput(path)
	if err != nil {
		return nil, err
	}
	results, err := InspectData(data, password)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", path, err)
	}
	return results, nil
}

// InspectData detects the container format of data and inspects it.
func InspectData(data []byte, password string) ([]InspectResult, error) {
	switch {
	case bytes.Contains(data, []byte("-----BEGIN")):
		return inspectPEMData(data)
	case bytes.HasPrefix(data, jksMagic):
		return inspectJKSData(data, password)
	}

	if certs, err := certpack.DecodePKCS7(data); err == nil {
		var results []InspectResult
		for _, cert := range certs {
			results = append(results, inspectCert(cert, "pkcs7"))
		}
		return results, nil
	}

	key, leaf, caCerts, err := certpack.DecodePKCS12(data, password)
	if err != nil {
		return nil, fmt.Errorf("unrecognized container (not PEM, PKCS#7, JKS, or PKCS#12 with this password): %w", err)
	}
	results := []InspectResult{inspectCert(leaf, "pkcs12")}
	for _, ca := range caCerts {
		results = append(results, inspectCert(ca, "pkcs12"))
	}
	results = append(results, inspectKey(key, "pkcs12"))
	return results, nil
}

func inspectPEMData(data []byte) ([]InspectResult, error) {
	var results []InspectResult
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch {
		case block.Type == "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, &certpack.ParseError{Segment: len(results) + 1, Msg: "parsing certificate", Err: err}
			}
			results = append(results, inspectCert(cert, "pem"))
		case strings.HasSuffix(block.Type, "PRIVATE KEY"):
			key, err := certpack.ParsePEMPrivateKey(pem.EncodeToMemory(block))
			if err != nil {
				return nil, err
			}
			results = append(results, inspectKey(key, "pem"))
		}
	}
	if len(results) == 0 {
		return nil, errors.New("no certificates or keys found")
	}
	return results, nil
}

func inspectJKSData(data []byte, password string) ([]InspectResult, error) {
	ks, err := certpack.LoadKeystore(data, password)
	if err != nil {
		return nil, err
	}
	var results []InspectResult
	for _, alias := range ks.Aliases() {
		switch {
		case ks.IsPrivateKeyEntry(alias):
			key, chain, err := ks.PrivateKeyEntry(alias, password)
			if err != nil {
				return nil, err
			}
			for _, cert := range chain {
				r := inspectCert(cert, "jks")
				r.Alias = alias
				results = append(results, r)
			}
			r := inspectKey(key, "jks")
			r.Alias = alias
			results = append(results, r)
		case ks.IsTrustedCertificateEntry(alias):
			cert, err := ks.TrustedCertificate(alias)
			if err != nil {
				return nil, err
			}
			r := inspectCert(cert, "jks")
			r.Type = "trusted_certificate"
			r.Alias = alias
			results = append(results, r)
		}
	}
	return results, nil
}

func inspectCert(cert *x509.Certificate, container string) InspectResult {
	sans := append([]string{}, cert.DNSNames...)
	for _, ip := range cert.IPAddresses {
		sans = append(sans, ip.String())
	}
	subject, _ := certpack.CanonicalDN(cert.RawSubject)
	issuer, _ := certpack.CanonicalDN(cert.RawIssuer)
	return InspectResult{
		Type:      "certificate",
		Container: container,
		Subject:   subject,
		Issuer:    issuer,
		Serial:    cert.SerialNumber.String(),
		NotBefore: cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:  cert.NotAfter.UTC().Format(time.RFC3339),
		CertType:  certType(cert),
		KeyAlgo:   certpack.PublicKeyAlgorithmName(cert.PublicKey),
		KeySize:   publicKeySize(cert.PublicKey),
		SANs:      sans,
		SHA256:    certpack.CertFingerprint(cert),
		SigAlg:    cert.SignatureAlgorithm.String(),
	}
}

func certType(cert *x509.Certificate) string {
	switch {
	case !cert.IsCA:
		return "leaf"
	case bytes.Equal(cert.RawSubject, cert.RawIssuer):
		return "root"
	default:
		return "intermediate"
	}
}

func inspectKey(key any, container string) InspectResult {
	r := InspectResult{
		Type:      "private_key",
		Container: container,
		KeySize:   privateKeySize(key),
	}
	if pub, err := certpack.GetPublicKey(key); err == nil {
		r.KeyAlgo = certpack.PublicKeyAlgorithmName(pub)
	}
	return r
}

func publicKeySize(pub any) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("%d", k.N.BitLen())
	case *ecdsa.PublicKey:
		return k.Curve.Params().Name
	case ed25519.PublicKey:
		return "256"
	default:
		return "unknown"
	}
}

func privateKeySize(key any) string {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return fmt.Sprintf("%d", k.N.BitLen())
	case *ecdsa.PrivateKey:
		return k.Curve.Params().Name
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return "256"
	default:
		return "unknown"
	}
}

// FormatInspectResults formats inspection results as text or JSON.
func FormatInspectResults(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		if r.Alias != "" {
			fmt.Fprintf(&sb, "[%s] ", r.Alias)
		}
		switch r.Type {
		case "certificate", "trusted_certificate":
			if r.Type == "trusted_certificate" {
				fmt.Fprintf(&sb, "Trusted Certificate (%s):\n", r.Container)
			} else {
				fmt.Fprintf(&sb, "Certificate (%s):\n", r.Container)
			}
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
			if len(r.SANs) > 0 {
				fmt.Fprintf(&sb, "  SANs:        %s\n", strings.Join(r.SANs, ", "))
			}
			fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
			fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
			fmt.Fprintf(&sb, "  Type:        %s\n", r.CertType)
			fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
			fmt.Fprintf(&sb, "  Not After:   %s\n", r.NotAfter)
			fmt.Fprintf(&sb, "  Key:         %s %s\n", r.KeyAlgo, r.KeySize)
			fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
			fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
		case "private_key":
			fmt.Fprintf(&sb, "Private Key (%s):\n", r.Container)
			fmt.Fprintf(&sb, "  Type:        %s\n", r.KeyAlgo)
			fmt.Fprintf(&sb, "  Size:        %s\n", r.KeySize)
		}
	}
	return sb.String()
}
