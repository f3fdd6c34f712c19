package packaging

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sensiblebit/certpack"
)

// writeScript creates an executable shell script standing in for openssl
// or keytool. Tests using it do not run in parallel: exec of a file that
// another goroutine's fork still holds open fails with ETXTBSY.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// argOutputScript records its arguments, checks a password variable, and
// writes payload to the path following flag.
func argOutputScript(argsLog, flag, envVar, password, payload string) string {
	return `echo "$@" >> '` + argsLog + `'
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "` + flag + `" ]; then out="$2"; shift; fi
  shift
done
if [ "$` + envVar + `" != '` + password + `' ]; then echo "bad password" >&2; exit 3; fi
printf '` + payload + `' > "$out"
`
}

func TestTools_ExportPKCS12_PasswordViaEnv(t *testing.T) {
	// WHY: Passwords on argv are visible in process listings and debug
	// logs; openssl must receive them through the environment.
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	openssl := writeScript(t, dir, "openssl", argOutputScript(argsLog, "-out", envExportPass, "s3cret-pass", "P12DATA"))

	tools := NewTools(openssl, "", &Runner{Timeout: 10 * time.Second})
	got, err := tools.ExportPKCS12(context.Background(), ExportRequest{
		KeyPEM:   []byte("key"),
		ChainPEM: []byte("chain"),
		Alias:    "ibm",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "P12DATA" {
		t.Errorf("output = %q", got)
	}
	args, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(args), "s3cret-pass") {
		t.Errorf("password leaked into argv: %s", args)
	}
	for _, want := range []string{"pkcs12 -export", "-name ibm", "-passout env:" + envExportPass} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestTools_ImportKeystore(t *testing.T) {
	// WHY: keytool must get both store passwords via :env and the
	// source/destination aliases as given.
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	keytool := writeScript(t, dir, "keytool", argOutputScript(argsLog, "-destkeystore", envDestPass, "dest-pass", "JKSDATA"))

	tools := NewTools("", keytool, nil)
	got, err := tools.ImportKeystore(context.Background(), ImportRequest{
		PKCS12:       []byte("p12"),
		SrcAlias:     "ibm",
		SrcPassword:  "src-pass",
		DestAlias:    "server",
		DestPassword: "dest-pass",
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "JKSDATA" {
		t.Errorf("output = %q", got)
	}
	args, _ := os.ReadFile(argsLog)
	for _, want := range []string{"-srcalias ibm", "-destalias server", "-srcstorepass:env " + envSrcPass, "-deststorepass:env " + envDestPass} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if strings.Contains(string(args), "src-pass") || strings.Contains(string(args), "dest-pass") {
		t.Errorf("password leaked into argv: %s", args)
	}
}

func TestTools_ImportTrusted(t *testing.T) {
	// WHY: Truststore creation goes through keytool -importcert.
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	keytool := writeScript(t, dir, "keytool", argOutputScript(argsLog, "-keystore", envDestPass, "trust-pass", "TRUST"))

	got, err := NewTools("", keytool, nil).ImportTrusted(context.Background(), TrustRequest{
		CertPEM:  []byte("cert"),
		Alias:    "corp-root",
		Password: "trust-pass",
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "TRUST" {
		t.Errorf("output = %q", got)
	}
	args, _ := os.ReadFile(argsLog)
	if !strings.Contains(string(args), "-importcert -noprompt -alias corp-root") {
		t.Errorf("unexpected args %q", args)
	}
}

func TestTools_FailureCarriesOutput(t *testing.T) {
	// WHY: When keytool fails the user must see its stdout and stderr
	// verbatim to diagnose the problem.
	dir := t.TempDir()
	keytool := writeScript(t, dir, "keytool", `echo "Importing keystore src.p12..."
echo "keytool error: java.io.IOException: keystore password was incorrect" >&2
exit 1
`)
	_, err := NewTools("", keytool, nil).ImportKeystore(context.Background(), ImportRequest{
		PKCS12: []byte("p12"), SrcAlias: "a", SrcPassword: "x", DestAlias: "a", DestPassword: "y",
	})
	var te *certpack.ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ExternalToolError, got %v", err)
	}
	if te.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", te.ExitCode)
	}
	if !strings.Contains(te.Stdout, "Importing keystore") {
		t.Errorf("stdout = %q", te.Stdout)
	}
	if !strings.Contains(te.Stderr, "keystore password was incorrect") {
		t.Errorf("stderr = %q", te.Stderr)
	}
}
