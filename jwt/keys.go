package jwtkit

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultAuthKeysPath is the default directory where External Secrets mounts auth keys
	DefaultAuthKeysPath = "/vault/auth"
	secretFile          = "jwt_secret"
	defaultKeysDir      = ".runtime/meterkit"
	generatedKeyBytes   = 48
)

// LoadSigningKey discovers the HMAC signing key with the following priority:
// 1. explicit (normally JWT_SECRET) - highest priority
// 2. /vault/auth/jwt_secret (External Secrets Operator in Kubernetes)
// 3. a generated key persisted in .runtime/meterkit/ (development fallback)
//
// Generation is refused when prod is set.
func LoadSigningKey(explicit string, prod bool) ([]byte, error) {
	return discoverSigningKey(explicit, DefaultAuthKeysPath, defaultKeysDir, prod)
}

func discoverSigningKey(explicit, vaultDir, devDir string, prod bool) ([]byte, error) {
	if s := strings.TrimSpace(explicit); s != "" {
		if len(s) < MinKeyBytes {
			return nil, ErrWeakKey
		}
		return []byte(s), nil
	}

	if key, err := tryLoadFromFilesystem(vaultDir); err != nil {
		return nil, fmt.Errorf("failed to load key from %s: %w", vaultDir, err)
	} else if key != nil {
		return key, nil
	}

	if prod {
		return nil, fmt.Errorf("no JWT secret in JWT_SECRET or %s and auto-generation is disabled in production", filepath.Join(vaultDir, secretFile))
	}
	return loadOrGenerateDevKey(devDir)
}

// tryLoadFromFilesystem returns (nil, nil) when the secret file is absent.
func tryLoadFromFilesystem(dir string) ([]byte, error) {
	if dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, secretFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", secretFile, err)
	}
	s := strings.TrimSpace(string(data))
	if len(s) < MinKeyBytes {
		return nil, ErrWeakKey
	}
	return []byte(s), nil
}

func loadOrGenerateDevKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, secretFile)
	if data, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(data)); len(s) >= MinKeyBytes {
			return []byte(s), nil
		}
	}

	raw := make([]byte, generatedKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate dev key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.MkdirAll(dir, 0700); err != nil {
		logrus.WithError(err).Warn("failed to persist dev jwt secret")
	} else if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		logrus.WithError(err).Warn("failed to persist dev jwt secret")
	}
	return []byte(key), nil
}
