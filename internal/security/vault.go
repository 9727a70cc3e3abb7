// internal/security/vault.go
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const DefaultKeyFile = "wallet_key.key"

type KeyOrigin string

const (
	KeyOriginEnv       KeyOrigin = "env"
	KeyOriginFile      KeyOrigin = "file"
	KeyOriginGenerated KeyOrigin = "generated"
)

// KeySource describes where the master key may come from, in priority order:
// the environment value, the key file, then a freshly generated key.
type KeySource struct {
	EnvValue string
	EnvName  string
	FilePath string
	// Out receives the one-time notice for a generated key. Defaults to stderr.
	Out io.Writer
}

// Vault is the loaded key vault plus where its key came from.
type Vault struct {
	*Encryption
	Origin KeyOrigin
}

// LoadVault provisions the master key once at startup.
func LoadVault(src KeySource, logger *zap.Logger) (*Vault, error) {
	if src.FilePath == "" {
		src.FilePath = DefaultKeyFile
	}
	if src.EnvName == "" {
		src.EnvName = "WALLET_ENCRYPTION_KEY"
	}
	if src.Out == nil {
		src.Out = os.Stderr
	}

	// 1. Environment
	if value := strings.TrimSpace(src.EnvValue); value != "" {
		enc, err := NewEncryption(value)
		if err == nil {
			logger.Info("Encryption key loaded", zap.String("origin", string(KeyOriginEnv)))
			return &Vault{Encryption: enc, Origin: KeyOriginEnv}, nil
		}
		logger.Warn("Ignoring invalid encryption key from environment",
			zap.String("env", src.EnvName),
			zap.Error(err))
	}

	// 2. Key file
	enc, err := readKeyFile(src.FilePath)
	if err == nil {
		logger.Info("Encryption key loaded",
			zap.String("origin", string(KeyOriginFile)),
			zap.String("path", src.FilePath))
		return &Vault{Encryption: enc, Origin: KeyOriginFile}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		// A corrupt key file must not be silently replaced: that would orphan every stored secret.
		return nil, fmt.Errorf("key file %s is unusable: %w", src.FilePath, err)
	}

	// 3. Generate and persist
	key, err := GenerateMasterKey()
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(src.FilePath, key); err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost a race against another process; use its key.
			enc, readErr := readKeyFile(src.FilePath)
			if readErr != nil {
				return nil, fmt.Errorf("key file %s is unusable: %w", src.FilePath, readErr)
			}
			return &Vault{Encryption: enc, Origin: KeyOriginFile}, nil
		}
		return nil, err
	}

	enc, err = NewEncryption(key)
	if err != nil {
		return nil, err
	}

	printGeneratedKey(src.Out, src.EnvName, src.FilePath, key)
	logger.Warn("Generated new encryption key",
		zap.String("origin", string(KeyOriginGenerated)),
		zap.String("path", src.FilePath))

	return &Vault{Encryption: enc, Origin: KeyOriginGenerated}, nil
}

func readKeyFile(path string) (*Encryption, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewEncryption(strings.TrimSpace(string(raw)))
}

func writeKeyFile(path, key string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Sync()
}

func printGeneratedKey(out io.Writer, envName, path, key string) {
	fmt.Fprintln(out, "==============================================")
	fmt.Fprintln(out, "Generated new AES-256 wallet encryption key:")
	fmt.Fprintln(out, key)
	fmt.Fprintln(out, "==============================================")
	fmt.Fprintf(out, "Saved to %s. To pin it, set %s=%s\n", path, envName, key)
	fmt.Fprintln(out, "⚠️  IF THIS KEY IS LOST, EVERY STORED WALLET SECRET IS PERMANENTLY UNRECOVERABLE.")
	fmt.Fprintln(out, "⚠️  CHANGING IT ORPHANS ALL EXISTING WALLETS.")
	fmt.Fprintln(out, "⚠️  DO NOT COMMIT IT TO VERSION CONTROL.")
	fmt.Fprintln(out, "==============================================")
}
