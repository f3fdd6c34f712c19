package internal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sensiblebit/certpack"
	"github.com/sensiblebit/certpack/internal/packaging"
	"golang.org/x/sync/errgroup"
)

// Default names used when the caller leaves an output path or alias empty.
const (
	DefaultAlias          = "ibm"
	DefaultReorderedPath  = "cert_reordered.pem"
	DefaultPKCS12Path     = "mycertificate.p12"
	DefaultKeystorePath   = "mykeystore.jks"
	DefaultMultiKeystore  = "multi-keystore.jks"
	DefaultTruststorePath = "truststore.jks"
)

// Pipeline sequences reordering and packaging. Output files are written
// only after every in-memory step of a job has succeeded.
type Pipeline struct {
	Backend packaging.Backend
}

// ordered is the in-memory result of reordering one cert/key pair.
type ordered struct {
	result *certpack.ChainResult
	keyPEM []byte
}

// reorderFiles reads a bundle and key, orders the chain, and logs
// diagnostics about anything left unlinked.
func reorderFiles(certPath, keyPath string) (*ordered, error) {
	bundle, err := ReadInput(certPath)
	if err != nil {
		return nil, err
	}
	keyPEM, err := ReadInput(keyPath)
	if err != nil {
		return nil, err
	}
	result, err := certpack.Reorder(bundle, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("ordering %s: %w", certPath, err)
	}
	LogChainDiagnostics(certPath, result)
	return &ordered{result: result, keyPEM: keyPEM}, nil
}

// LogChainDiagnostics reports unlinked certificates, ambiguous links, and
// how the chain terminates.
func LogChainDiagnostics(source string, result *certpack.ChainResult) {
	slog.Info("chain reordered", "source", source,
		"summary", fmt.Sprintf("%d linked%s", len(result.Ordered), ChainAnnotation(len(result.Unlinked), len(result.Ambiguities))))
	if w := result.Incomplete(); w != nil {
		slog.Warn("some certificates could not be linked; including them at the end", "source", source, "count", len(w.Unlinked))
		for _, rec := range w.Unlinked {
			slog.Warn("unlinked certificate", "segment", rec.Segment, "subject", rec.SubjectDN, "issuer", rec.IssuerDN)
		}
	}
	for _, a := range result.Ambiguities {
		if len(a.Skipped) > 0 {
			slog.Warn("several certificates match issuer; using the first",
				"issuer", a.Issued.IssuerDN, "chosen", a.Chosen.Segment, "skipped", len(a.Skipped))
		}
		for _, sib := range a.Siblings {
			slog.Warn("issuer also signed a certificate outside the chain",
				"issuer", a.Issued.IssuerDN, "segment", sib.Segment, "subject", sib.SubjectDN)
		}
	}
	if hint := result.Termination(); hint != certpack.HintSelfIssued {
		slog.Warn("chain does not end at a root", "issuer", result.Last().IssuerDN, "hint", hint.String())
	}
}

// OrderInput configures Order.
type OrderInput struct {
	CertPath string
	KeyPath  string
	OutPath  string
	// P7BPath optionally writes the same order as a PKCS#7 file.
	P7BPath string
}

// OrderOutput reports what Order wrote.
type OrderOutput struct {
	Result  *certpack.ChainResult
	OutPath string
	P7BPath string
}

// Order reorders a bundle and writes the reordered PEM.
func Order(in OrderInput) (*OrderOutput, error) {
	if err := CheckInputs(in.CertPath, in.KeyPath); err != nil {
		return nil, err
	}
	o, err := reorderFiles(in.CertPath, in.KeyPath)
	if err != nil {
		return nil, err
	}
	var p7b []byte
	if in.P7BPath != "" {
		if p7b, err = certpack.EncodePKCS7(certpack.Certificates(o.result.All())); err != nil {
			return nil, fmt.Errorf("encoding PKCS#7: %w", err)
		}
	}

	out := &OrderOutput{Result: o.result, OutPath: orDefault(in.OutPath, DefaultReorderedPath)}
	if err := WriteFile(out.OutPath, o.result.PEM(), ModePublic); err != nil {
		return nil, err
	}
	if p7b != nil {
		if err := WriteFile(in.P7BPath, p7b, ModePublic); err != nil {
			return nil, err
		}
		out.P7BPath = in.P7BPath
	}
	return out, nil
}

// KeystoreInput configures Keystore.
type KeystoreInput struct {
	CertPath string
	KeyPath  string
	Password string
	// DestPassword protects the JKS. Empty means Password.
	DestPassword string
	// SrcAlias names the PKCS#12 entry; DestAlias names the JKS entry.
	// Either defaults to the other, then to DefaultAlias.
	SrcAlias      string
	DestAlias     string
	ReorderedPath string
	PKCS12Path    string
	KeystorePath  string
	Legacy        bool
}

// KeystoreOutput reports what Keystore wrote.
type KeystoreOutput struct {
	Result        *certpack.ChainResult
	ReorderedPath string
	PKCS12Path    string
	KeystorePath  string
	PKCS12        []byte
	Keystore      []byte
}

// Keystore reorders the chain, exports it with the key to PKCS#12, and
// imports that into a new JKS keystore.
func (p *Pipeline) Keystore(ctx context.Context, in KeystoreInput) (*KeystoreOutput, error) {
	if err := CheckInputs(in.CertPath, in.KeyPath); err != nil {
		return nil, err
	}
	destPassword := orDefault(in.DestPassword, in.Password)
	if err := validatePasswords(in.Password, destPassword); err != nil {
		return nil, err
	}
	srcAlias := orDefault(in.SrcAlias, orDefault(in.DestAlias, DefaultAlias))
	destAlias := orDefault(in.DestAlias, srcAlias)

	o, err := reorderFiles(in.CertPath, in.KeyPath)
	if err != nil {
		return nil, err
	}
	pfx, err := p.Backend.ExportPKCS12(ctx, packaging.ExportRequest{
		KeyPEM:   o.keyPEM,
		ChainPEM: o.result.PEM(),
		Alias:    srcAlias,
		Password: in.Password,
		Legacy:   in.Legacy,
	})
	if err != nil {
		return nil, fmt.Errorf("exporting PKCS#12: %w", err)
	}
	jks, err := p.Backend.ImportKeystore(ctx, packaging.ImportRequest{
		PKCS12:       pfx,
		SrcAlias:     srcAlias,
		SrcPassword:  in.Password,
		DestAlias:    destAlias,
		DestPassword: destPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("importing into keystore: %w", err)
	}

	out := &KeystoreOutput{
		Result:        o.result,
		ReorderedPath: orDefault(in.ReorderedPath, DefaultReorderedPath),
		PKCS12Path:    orDefault(in.PKCS12Path, DefaultPKCS12Path),
		KeystorePath:  orDefault(in.KeystorePath, DefaultKeystorePath),
		PKCS12:        pfx,
		Keystore:      jks,
	}
	if err := WriteFile(out.ReorderedPath, o.result.PEM(), ModePublic); err != nil {
		return nil, err
	}
	if err := WriteFile(out.PKCS12Path, pfx, ModeSecret); err != nil {
		return nil, err
	}
	if err := WriteFile(out.KeystorePath, jks, ModeSecret); err != nil {
		return nil, err
	}
	slog.Info("keystore created", "path", out.KeystorePath, "alias", destAlias, "backend", p.Backend.Name())
	return out, nil
}

// MultiInput configures Multi.
type MultiInput struct {
	Entries      []Entry
	Password     string
	KeystorePath string
	// OutDir holds the per-alias .p12 and reordered PEM files.
	OutDir string
	Legacy bool
}

// MultiOutput reports what Multi wrote.
type MultiOutput struct {
	KeystorePath string
	Keystore     []byte
	Aliases      []string
}

// Multi imports every entry into one keystore, in order. The keystore file
// is rewritten after each successful import, so on an *certpack.ImportError
// it holds exactly the aliases listed as succeeded.
func (p *Pipeline) Multi(ctx context.Context, in MultiInput) (*MultiOutput, error) {
	if err := validateEntries(in.Entries); err != nil {
		return nil, err
	}
	if err := certpack.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	for _, e := range in.Entries {
		if err := CheckInputs(e.Cert, e.Key); err != nil {
			return nil, err
		}
	}

	// Ordering is independent per entry; do it up front so malformed input
	// aborts before the keystore is touched.
	orders := make([]*ordered, len(in.Entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range in.Entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, err := reorderFiles(e.Cert, e.Key)
			if err != nil {
				return fmt.Errorf("alias %q: %w", e.Alias, err)
			}
			orders[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &MultiOutput{KeystorePath: orDefault(in.KeystorePath, DefaultMultiKeystore)}
	if err := RemoveIfExists(out.KeystorePath); err != nil {
		return nil, err
	}

	var store []byte
	for i, e := range in.Entries {
		next, err := p.importEntry(ctx, e, orders[i], store, in)
		if err == nil {
			err = WriteFile(out.KeystorePath, next, ModeSecret)
		}
		if err != nil {
			return out, &certpack.ImportError{Succeeded: out.Aliases, Failed: e.Alias, Err: err}
		}
		store = next
		out.Keystore = next
		out.Aliases = append(out.Aliases, e.Alias)
		slog.Info("imported alias", "alias", e.Alias, "keystore", out.KeystorePath)
	}
	return out, nil
}

func (p *Pipeline) importEntry(ctx context.Context, e Entry, o *ordered, store []byte, in MultiInput) ([]byte, error) {
	chain := o.result.PEM()
	pfx, err := p.Backend.ExportPKCS12(ctx, packaging.ExportRequest{
		KeyPEM:   o.keyPEM,
		ChainPEM: chain,
		Alias:    e.Alias,
		Password: in.Password,
		Legacy:   in.Legacy,
	})
	if err != nil {
		return nil, fmt.Errorf("exporting PKCS#12: %w", err)
	}
	if err := WriteFile(filepath.Join(in.OutDir, e.Alias+"_reordered.pem"), chain, ModePublic); err != nil {
		return nil, err
	}
	if err := WriteFile(filepath.Join(in.OutDir, e.Alias+".p12"), pfx, ModeSecret); err != nil {
		return nil, err
	}
	return p.Backend.ImportKeystore(ctx, packaging.ImportRequest{
		PKCS12:       pfx,
		SrcAlias:     e.Alias,
		SrcPassword:  in.Password,
		Keystore:     store,
		DestAlias:    e.Alias,
		DestPassword: in.Password,
	})
}

// TruststoreInput configures Truststore.
type TruststoreInput struct {
	CertPath string
	Alias    string
	Password string
	OutPath  string
}

// TruststoreOutput reports what Truststore wrote.
type TruststoreOutput struct {
	Path        string
	SidecarPath string
	Truststore  []byte
}

// Truststore creates a keystore holding one trusted certificate entry and
// writes a base64 sidecar next to it.
func (p *Pipeline) Truststore(ctx context.Context, in TruststoreInput) (*TruststoreOutput, error) {
	if err := CheckInputs(in.CertPath); err != nil {
		return nil, err
	}
	if err := certpack.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	certPEM, err := ReadInput(in.CertPath)
	if err != nil {
		return nil, err
	}
	alias := orDefault(in.Alias, DefaultAlias)
	data, err := p.Backend.ImportTrusted(ctx, packaging.TrustRequest{
		CertPEM:  certPEM,
		Alias:    alias,
		Password: in.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating truststore: %w", err)
	}

	out := &TruststoreOutput{Path: orDefault(in.OutPath, DefaultTruststorePath), Truststore: data}
	if err := WriteFile(out.Path, data, ModePublic); err != nil {
		return nil, err
	}
	if out.SidecarPath, err = WriteSidecar(out.Path, data, ModePublic); err != nil {
		return nil, err
	}
	slog.Info("truststore created", "path", out.Path, "alias", alias)
	return out, nil
}

// Encode returns the base64 encoding of the file at path and, when sidecar
// is set, also writes it to path.b64.
func Encode(path string, sidecar bool) (encoded, sidecarPath string, err error) {
	data, err := ReadInput(path)
	if err != nil {
		return "", "", err
	}
	encoded = Base64(data)
	if sidecar {
		if sidecarPath, err = WriteSidecar(path, data, ModeSecret); err != nil {
			return "", "", err
		}
	}
	return encoded, sidecarPath, nil
}

func validatePasswords(passwords ...string) error {
	for _, pw := range passwords {
		if err := certpack.ValidatePassword(pw); err != nil {
			return err
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
