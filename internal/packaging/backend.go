// Package packaging turns a reordered chain and its key into PKCS#12 and
// Java KeyStore containers, either in-process or by delegating to the
// openssl and keytool binaries.
package packaging

import (
	"context"
	"fmt"
	"strings"
)

// ExportRequest describes a PKCS#12 export.
type ExportRequest struct {
	// KeyPEM is the unencrypted private key.
	KeyPEM []byte
	// ChainPEM is the reordered chain, leaf first.
	ChainPEM []byte
	// Alias is the friendly name of the key entry.
	Alias string
	// Password protects the container.
	Password string
	// Legacy selects RC2/3DES protection for older Java runtimes.
	Legacy bool
}

// ImportRequest describes importing a PKCS#12 key entry into a JKS keystore.
type ImportRequest struct {
	PKCS12      []byte
	SrcAlias    string
	SrcPassword string
	// Keystore is the existing JKS to add to, or nil to create a new one.
	Keystore     []byte
	DestAlias    string
	DestPassword string
}

// TrustRequest describes adding a trusted certificate entry to a JKS keystore.
type TrustRequest struct {
	// CertPEM holds the certificate to trust. Only its first certificate is
	// imported.
	CertPEM  []byte
	Alias    string
	Password string
	// Keystore is the existing JKS to add to, or nil to create a new one.
	Keystore []byte
}

// Backend produces container bytes. Implementations never write to the
// caller's output paths; the caller persists the results.
type Backend interface {
	Name() string
	ExportPKCS12(ctx context.Context, req ExportRequest) ([]byte, error)
	ImportKeystore(ctx context.Context, req ImportRequest) ([]byte, error)
	ImportTrusted(ctx context.Context, req TrustRequest) ([]byte, error)
}

// Kind selects a Backend implementation.
type Kind string

const (
	KindNative Kind = "native"
	KindTools  Kind = "tools"
)

// Kinds lists the accepted backend names.
var Kinds = []Kind{KindNative, KindTools}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (use native or tools)", s)
}

// Options configure New.
type Options struct {
	Kind    Kind
	OpenSSL string
	Keytool string
	Runner  *Runner
}

// New returns the backend selected by opts.Kind.
func New(opts Options) (Backend, error) {
	switch opts.Kind {
	case KindNative, "":
		return Native{}, nil
	case KindTools:
		return NewTools(opts.OpenSSL, opts.Keytool, opts.Runner), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Kind)
	}
}
