// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// The filename is the key name and the trimmed contents are the value.
//
// Supported key files: minio-access-key, minio-secret-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/istat-engine/pkg/types"
)

// Key file names.
const (
	MinioAccessKey = "minio-access-key"
	MinioSecretKey = "minio-secret-key"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// ApplyMinio fills empty MinIO credentials in cfg from loaded secrets.
// Credentials already set through configuration or environment win.
func ApplyMinio(cfg *types.MinioConfig, s map[string]string) {
	if cfg.AccessKey == "" {
		cfg.AccessKey = s[MinioAccessKey]
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = s[MinioSecretKey]
	}
}
