package certpack

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted for PKCS#12 and JKS
// containers. keytool refuses store passwords shorter than this.
const MinPasswordLength = 6

// InputNotFoundError reports a required input path that does not exist.
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// ParseError reports a malformed or missing certificate or key block.
// Segment is the 1-based index of the certificate segment in the bundle,
// or 0 when the error concerns the whole input or a private key.
type ParseError struct {
	Segment int
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.Segment > 0 {
		fmt.Fprintf(&sb, "certificate segment %d: ", e.Segment)
	}
	sb.WriteString(e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// NoMatchingLeafError is returned when no certificate in the bundle carries
// the public half of the supplied private key.
type NoMatchingLeafError struct {
	Count int
}

func (e *NoMatchingLeafError) Error() string {
	return fmt.Sprintf("private key does not match any of the %d certificate(s) provided", e.Count)
}

// ChainIncompleteWarning lists certificates that could not be linked into
// the chain by subject/issuer matching. It is not fatal; it implements error
// so it can be logged and inspected with errors.As.
type ChainIncompleteWarning struct {
	Unlinked []*CertificateRecord
}

func (w *ChainIncompleteWarning) Error() string {
	parts := make([]string, 0, len(w.Unlinked))
	for _, r := range w.Unlinked {
		parts = append(parts, fmt.Sprintf("subject=%s, issuer=%s", r.SubjectDN, r.IssuerDN))
	}
	return fmt.Sprintf("%d certificate(s) could not be linked: %s", len(w.Unlinked), strings.Join(parts, "; "))
}

// ExternalToolError reports a delegated command that was unavailable, timed
// out, or exited non-zero. Stdout and Stderr hold the tool's output verbatim.
// Args never contain secrets; passwords are handed over via the environment.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "running %s %s", e.Tool, strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		fmt.Fprintf(&sb, ": exit status %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Stdout != "" {
		fmt.Fprintf(&sb, "\n[STDOUT]\n%s", e.Stdout)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&sb, "\n[STDERR]\n%s", e.Stderr)
	}
	return sb.String()
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// WeakPasswordError is returned for passwords shorter than MinPasswordLength.
type WeakPasswordError struct {
	Length int
	Min    int
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password must be at least %d characters (got %d)", e.Min, e.Length)
}

// ValidatePassword enforces the minimum container password length, counted
// in characters as keytool does.
func ValidatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < MinPasswordLength {
		return &WeakPasswordError{Length: n, Min: MinPasswordLength}
	}
	return nil
}

// ImportError reports a failed entry in a sequential multi-alias import.
// Succeeded lists the aliases that were imported before Failed.
type ImportError struct {
	Succeeded []string
	Failed    string
	Err       error
}

func (e *ImportError) Error() string {
	done := "none"
	if len(e.Succeeded) > 0 {
		done = strings.Join(e.Succeeded, ", ")
	}
	return fmt.Sprintf("importing alias %q: %v (already imported: %s)", e.Failed, e.Err, done)
}

func (e *ImportError) Unwrap() error { return e.Err }

// IsFatal reports whether err should abort the run. Everything except a
// ChainIncompleteWarning is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var w *ChainIncompleteWarning
	return !errors.As(err, &w)
}
