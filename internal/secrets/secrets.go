// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the filename is the key and the trimmed file
// contents are the value.
package secrets

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDir is where secrets are read from unless overridden.
const DefaultDir = ".secrets"

// KeyOpenAI is the API key sent to OpenAI-compatible endpoints.
const KeyOpenAI = "openai-api-key"

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error and yields
// an empty set. Unreadable files are logged and skipped.
func Load(dir string, log *slog.Logger) (Secrets, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := Secrets{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", "key", name, "err", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Value returns explicit when it is set, else the secret stored under key.
func (s Secrets) Value(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s[key]
}

// Keys returns the loaded key names in sorted order. Values are never
// exposed this way so the result is safe to log.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
