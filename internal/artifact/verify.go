package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/ZebulonRouseFrantzich/toolrun/internal/events"
	"github.com/ZebulonRouseFrantzich/toolrun/internal/toolkit"
)

// verify checks a freshly downloaded binary against the checksum and
// signature the tool declares for the current platform. Tools that declare
// neither pass unchecked.
func (s *Store) verify(ctx context.Context, scope *events.Scope, toolkitID string, cfg *toolkit.ToolConfig, binPath string) error {
	sum := cfg.Checksums[s.tag]
	sigURL := cfg.Signatures[s.tag]
	if sum == "" && sigURL == "" {
		return nil
	}

	scope.Report(events.VerifyingBinary, map[string]string{"binary_path": binPath})

	if sum != "" {
		actual, err := calculateSHA256(binPath)
		if err != nil {
			return fmt.Errorf("calculate checksum: %w", err)
		}
		if !strings.EqualFold(actual, sum) {
			return fmt.Errorf("%w: checksum mismatch:\nactual:   %s\nexpected: %s", ErrIntegrity, actual, sum)
		}
	}

	if sigURL != "" {
		doc, err := s.registry.Document(ctx, toolkitID)
		if err != nil {
			return err
		}
		if doc.Keyring == "" {
			return fmt.Errorf("%w: signature declared but toolkit has no keyring", ErrIntegrity)
		}

		tmpDir, err := os.MkdirTemp("", "toolrun-sig-*")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		sigPath := filepath.Join(tmpDir, filepath.Base(binPath)+".sig")
		if _, err := s.downloader.Transfer(ctx, sigURL, sigPath); err != nil {
			return fmt.Errorf("download signature: %w", err)
		}

		keyringPath := filepath.Join(s.registry.ToolkitDir(toolkitID), doc.Keyring)
		if err := verifySignature(keyringPath, binPath, sigPath); err != nil {
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
	}

	return nil
}

// verifySignature checks a detached signature, armored or binary.
func verifySignature(keyringPath, filePath, signaturePath string) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, file, sigFile, nil)
	if err != nil {
		file.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, file, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	return nil
}

// loadKeyring reads an OpenPGP keyring, armored or binary.
func loadKeyring(keyringPath string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		keyringFile.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
