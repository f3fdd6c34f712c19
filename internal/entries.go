package internal

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one alias of a multi-alias keystore job.
type Entry struct {
	Alias string `yaml:"alias"`
	Cert  string `yaml:"cert"`
	Key   string `yaml:"key"`
}

// EntriesYAML represents the full YAML structure of a multi-alias job.
type EntriesYAML struct {
	Keystore string  `yaml:"keystore,omitempty"`
	Entries  []Entry `yaml:"entries"`
}

// LoadEntries loads a multi-alias job from the specified YAML file. Relative
// cert and key paths are resolved against the file's directory. The
// keystore path is returned as written, or empty when unset.
func LoadEntries(path string) (*EntriesYAML, error) {
	data, err := ReadInput(path)
	if err != nil {
		return nil, err
	}

	var job EntriesYAML
	if err := yaml.Unmarshal(data, &job); err != nil {
		// Fall back to a bare list of entries
		var entries []Entry
		if listErr := yaml.Unmarshal(data, &entries); listErr != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		job = EntriesYAML{Entries: entries}
	}

	base := filepath.Dir(path)
	for i := range job.Entries {
		job.Entries[i].Cert = resolvePath(base, job.Entries[i].Cert)
		job.Entries[i].Key = resolvePath(base, job.Entries[i].Key)
	}
	if err := validateEntries(job.Entries); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &job, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateEntries rejects empty jobs, missing fields, and aliases that
// collide once lowercased the way JKS stores them.
func validateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return errors.New("no entries defined")
	}
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		n := i + 1
		switch {
		case strings.TrimSpace(e.Alias) == "":
			return fmt.Errorf("entry %d: alias is required", n)
		case e.Cert == "":
			return fmt.Errorf("entry %d (%s): cert is required", n, e.Alias)
		case e.Key == "":
			return fmt.Errorf("entry %d (%s): key is required", n, e.Alias)
		case strings.ContainsAny(e.Alias, `/\`):
			return fmt.Errorf("entry %d (%s): alias must not contain path separators", n, e.Alias)
		}
		folded := strings.ToLower(e.Alias)
		if prev, dup := seen[folded]; dup {
			return fmt.Errorf("entry %d (%s): alias duplicates entry %d", n, e.Alias, prev)
		}
		seen[folded] = n
	}
	return nil
}
