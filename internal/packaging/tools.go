package packaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables used to hand passwords to openssl and keytool.
const (
	envExportPass = "CERTPACK_EXPORT_PASS"
	envSrcPass    = "CERTPACK_SRC_PASS"
	envDestPass   = "CERTPACK_DEST_PASS"
)

// Tools delegates packaging to the openssl and keytool binaries. Inputs are
// staged in a private temporary directory that is removed afterwards.
type Tools struct {
	OpenSSL string
	Keytool string
	runner  *Runner
}

// NewTools returns a tools backend. Empty paths resolve through PATH and a
// nil runner uses DefaultToolTimeout without retries.
func NewTools(openssl, keytool string, runner *Runner) *Tools {
	if openssl == "" {
		openssl = "openssl"
	}
	if keytool == "" {
		keytool = "keytool"
	}
	if runner == nil {
		runner = &Runner{}
	}
	return &Tools{OpenSSL: openssl, Keytool: keytool, runner: runner}
}

func (t *Tools) Name() string { return string(KindTools) }

// ExportPKCS12 runs openssl pkcs12 -export.
func (t *Tools) ExportPKCS12(ctx context.Context, req ExportRequest) ([]byte, error) {
	return t.staged(func(dir string) ([]byte, error) {
		keyPath, err := stage(dir, "key.pem", req.KeyPEM)
		if err != nil {
			return nil, err
		}
		chainPath, err := stage(dir, "chain.pem", req.ChainPEM)
		if err != nil {
			return nil, err
		}
		out := filepath.Join(dir, "out.p12")

		args := []string{
			"pkcs12", "-export",
			"-out", out,
			"-inkey", keyPath,
			"-in", chainPath,
			"-name", req.Alias,
			"-passout", "env:" + envExportPass,
		}
		if req.Legacy {
			args = append(args, "-legacy")
		}
		if _, err := t.runner.Run(ctx, Command{
			Tool: "openssl",
			Path: t.OpenSSL,
			Args: args,
			Env:  []string{envExportPass + "=" + req.Password},
			Dir:  dir,
		}); err != nil {
			return nil, err
		}
		return readOutput(out)
	})
}

// ImportKeystore runs keytool -importkeystore from the PKCS#12 into a JKS.
func (t *Tools) ImportKeystore(ctx context.Context, req ImportRequest) ([]byte, error) {
	return t.staged(func(dir string) ([]byte, error) {
		src, err := stage(dir, "src.p12", req.PKCS12)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(dir, "dest.jks")
		if len(req.Keystore) > 0 {
			if _, err := stage(dir, "dest.jks", req.Keystore); err != nil {
				return nil, err
			}
		}

		args := []string{
			"-importkeystore",
			"-srckeystore", src,
			"-srcstoretype", "PKCS12",
			"-srcstorepass:env", envSrcPass,
			"-srcalias", req.SrcAlias,
			"-destkeystore", dest,
			"-deststoretype", "JKS",
			"-deststorepass:env", envDestPass,
			"-destkeypass:env", envDestPass,
			"-destalias", req.DestAlias,
			"-noprompt",
		}
		if _, err := t.runner.Run(ctx, Command{
			Tool: "keytool",
			Path: t.Keytool,
			Args: args,
			Env: []string{
				envSrcPass + "=" + req.SrcPassword,
				envDestPass + "=" + req.DestPassword,
			},
			Dir: dir,
		}); err != nil {
			return nil, err
		}
		return readOutput(dest)
	})
}

// ImportTrusted runs keytool -importcert to add a trusted certificate.
func (t *Tools) ImportTrusted(ctx context.Context, req TrustRequest) ([]byte, error) {
	return t.staged(func(dir string) ([]byte, error) {
		certPath, err := stage(dir, "cert.pem", req.CertPEM)
		if err != nil {
			return nil, err
		}
		store := filepath.Join(dir, "trust.jks")
		if len(req.Keystore) > 0 {
			if _, err := stage(dir, "trust.jks", req.Keystore); err != nil {
				return nil, err
			}
		}

		args := []string{
			"-importcert",
			"-noprompt",
			"-alias", req.Alias,
			"-file", certPath,
			"-keystore", store,
			"-storetype", "JKS",
			"-storepass:env", envDestPass,
		}
		if _, err := t.runner.Run(ctx, Command{
			Tool: "keytool",
			Path: t.Keytool,
			Args: args,
			Env:  []string{envDestPass + "=" + req.Password},
			Dir:  dir,
		}); err != nil {
			return nil, err
		}
		return readOutput(store)
	})
}

func (t *Tools) staged(fn func(dir string) ([]byte, error)) ([]byte, error) {
	dir, err := os.MkdirTemp("", "certpack-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

func stage(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}
	return path, nil
}

func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tool output %s: %w", filepath.Base(path), err)
	}
	return data, nil
}
