package main

import (
	"github.com/sensiblebit/certpack/internal/packaging"
	"github.com/spf13/pflag"
)

// backendValue is a pflag.Value restricted to the known backend kinds.
type backendValue struct {
	kind packaging.Kind
}

var _ pflag.Value = (*backendValue)(nil)

func (b *backendValue) String() string { return string(b.kind) }

func (b *backendValue) Set(s string) error {
	k, err := packaging.ParseKind(s)
	if err != nil {
		return err
	}
	b.kind = k
	return nil
}

func (b *backendValue) Type() string { return "backend" }

func backendNames() []string {
	names := make([]string, 0, len(packaging.Kinds))
	for _, k := range packaging.Kinds {
		names = append(names, string(k))
	}
	return names
}
