package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// DefaultPasswordEnv is the environment variable consulted for the
// container password when no password file is given.
const DefaultPasswordEnv = "CERTPACK_PASSWORD"

// ErrNoPassword is returned when no password source is available and stdin
// is not a terminal.
var ErrNoPassword = errors.New("no password provided: use --password-file, set the password environment variable, or run interactively")

// LoadPasswordsFromFile loads passwords from a file, one password per line.
// Blank lines are skipped.
func LoadPasswordsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var passwords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			passwords = append(passwords, pwd)
		}
	}
	return passwords, scanner.Err()
}

// PasswordSource says where a password may come from, in priority order:
// File, then the EnvVar environment variable, then an interactive prompt.
type PasswordSource struct {
	File   string
	EnvVar string
	// Prompt is shown on stderr before reading from a terminal. An empty
	// Prompt disables prompting.
	Prompt string

	stdin      *os.File
	prompt     io.Writer
	isTerminal func(fd uintptr) bool
	readSecret func(fd int) ([]byte, error)
}

// Resolve returns the password from the first available source. The value
// is never echoed or logged. ok is false when no source produced a value.
func (s PasswordSource) Resolve() (password string, ok bool, err error) {
	if s.File != "" {
		passwords, err := LoadPasswordsFromFile(s.File)
		if err != nil {
			return "", false, fmt.Errorf("loading password from file: %w", err)
		}
		if len(passwords) == 0 {
			return "", false, fmt.Errorf("password file %s is empty", s.File)
		}
		return passwords[0], true, nil
	}

	if s.EnvVar != "" {
		if v, found := os.LookupEnv(s.EnvVar); found && v != "" {
			return v, true, nil
		}
	}

	if s.Prompt == "" {
		return "", false, nil
	}
	stdin := s.stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	isTerminal := s.isTerminal
	if isTerminal == nil {
		isTerminal = isatty.IsTerminal
	}
	if !isTerminal(stdin.Fd()) {
		return "", false, nil
	}
	readSecret := s.readSecret
	if readSecret == nil {
		readSecret = term.ReadPassword
	}
	out := s.prompt
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprint(out, s.Prompt)
	secret, err := readSecret(int(stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", false, fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(secret)), true, nil
}

// RequirePassword resolves s and fails with ErrNoPassword when nothing was found.
func RequirePassword(s PasswordSource) (string, error) {
	password, ok, err := s.Resolve()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoPassword
	}
	return password, nil
}
