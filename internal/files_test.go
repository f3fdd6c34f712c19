package internal

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sensiblebit/certpack"
)

func TestCheckInputs(t *testing.T) {
	// WHY: Missing inputs must be reported by path before any work starts.
	t.Parallel()
	dir := t.TempDir()
	present := filepath.Join(dir, "present.pem")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.pem")

	if err := CheckInputs(present); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckInputs(present, missing)
	var nf *certpack.InputNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *InputNotFoundError, got %v", err)
	}
	if nf.Path != missing {
		t.Errorf("path = %q, want %q", nf.Path, missing)
	}
	if _, err := ReadInput(missing); !errors.As(err, &nf) {
		t.Errorf("ReadInput: expected *InputNotFoundError, got %v", err)
	}
}

func TestWriteFile_AtomicAndMode(t *testing.T) {
	// WHY: Key-bearing containers must land with owner-only permissions and no temporary files left behind.
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "store.jks")

	if err := WriteFile(path, []byte("first"), ModeSecret); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, []byte("second"), ModeSecret); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != ModeSecret {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), ModeSecret)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file, found %d entries", len(entries))
	}
}

func TestWriteSidecar(t *testing.T) {
	// WHY: The .b64 sidecar is pasted into secrets; it must decode back to the exact container bytes.
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "truststore.jks")
	data := []byte{0xfe, 0xed, 0xfe, 0xed, 0x00, 0x01}

	sidecar, err := WriteSidecar(path, data, ModePublic)
	if err != nil {
		t.Fatal(err)
	}
	if sidecar != path+".b64" {
		t.Errorf("sidecar = %q", sidecar)
	}
	encoded, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != string(data) {
		t.Error("sidecar does not decode to the original bytes")
	}
}

func TestRemoveIfExists(t *testing.T) {
	// WHY: Pipelines start from a fresh keystore whether or not one exists.
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "old.jks")
	if err := RemoveIfExists(path); err != nil {
		t.Errorf("missing file: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
}
