package packaging

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sensiblebit/certpack"
)

// Native packages containers in-process with go-pkcs12 and keystore-go.
// PKCS#12 friendly names are not written, so the key entry alias in a
// keystore comes from DestAlias alone.
type Native struct{}

func (Native) Name() string { return string(KindNative) }

// ExportPKCS12 encodes the key and chain. The first certificate in
// ChainPEM must be the leaf.
func (Native) ExportPKCS12(_ context.Context, req ExportRequest) ([]byte, error) {
	key, err := certpack.ParsePEMPrivateKey(req.KeyPEM)
	if err != nil {
		return nil, err
	}
	certs, err := parseCertificates(req.ChainPEM)
	if err != nil {
		return nil, err
	}
	if ok, err := certpack.KeyMatchesCert(key, certs[0]); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.New("private key does not match the first certificate of the chain")
	}

	encode := certpack.EncodePKCS12
	if req.Legacy {
		encode = certpack.EncodePKCS12Legacy
	}
	pfx, err := encode(key, certs[0], certs[1:], req.Password)
	if err != nil {
		return nil, fmt.Errorf("encoding PKCS#12: %w", err)
	}
	slog.Debug("exported PKCS#12", "backend", "native", "alias", req.Alias, "certs", len(certs))
	return pfx, nil
}

// ImportKeystore decodes the PKCS#12 and stores its key and chain under
// DestAlias. The entry key password is the destination store password.
func (Native) ImportKeystore(_ context.Context, req ImportRequest) ([]byte, error) {
	key, leaf, cas, err := certpack.DecodePKCS12(req.PKCS12, req.SrcPassword)
	if err != nil {
		return nil, err
	}
	ks, err := openKeystore(req.Keystore, req.DestPassword)
	if err != nil {
		return nil, err
	}
	chain := append([]*x509.Certificate{leaf}, cas...)
	if err := ks.SetPrivateKeyEntry(req.DestAlias, key, chain, req.DestPassword); err != nil {
		return nil, err
	}
	slog.Debug("imported key entry", "backend", "native", "alias", req.DestAlias, "chain", len(chain))
	return ks.Marshal(req.DestPassword)
}

// ImportTrusted stores the first certificate of CertPEM as a trusted entry.
func (Native) ImportTrusted(_ context.Context, req TrustRequest) ([]byte, error) {
	certs, err := parseCertificates(req.CertPEM)
	if err != nil {
		return nil, err
	}
	if len(certs) > 1 {
		slog.Warn("certificate file holds more than one certificate; only the first is trusted",
			"alias", req.Alias, "count", len(certs))
	}
	ks, err := openKeystore(req.Keystore, req.Password)
	if err != nil {
		return nil, err
	}
	if err := ks.SetTrustedCertificateEntry(req.Alias, certs[0]); err != nil {
		return nil, err
	}
	return ks.Marshal(req.Password)
}

func openKeystore(data []byte, password string) (*certpack.Keystore, error) {
	if len(data) == 0 {
		return certpack.NewKeystore(), nil
	}
	return certpack.LoadKeystore(data, password)
}

// parseCertificates decodes every CERTIFICATE block in data, in order.
func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &certpack.ParseError{Segment: len(certs) + 1, Msg: "parsing certificate", Err: err}
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, &certpack.ParseError{Msg: "no PEM certificate blocks found"}
	}
	return certs, nil
}
