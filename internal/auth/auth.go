package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".qd-render"
	credentialFile = "credentials"
)

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. Stored credential file at ~/.qd-render/credentials (written via SaveAPIKey)
//  2. GEMINI_API_KEY environment variable (the build/deploy-time default)
func GetAPIKey() (string, error) {
	key, err := getFromFile()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from stored credential file")
		return key, nil
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	log.Error().Err(err).Msg("Failed to retrieve API key")
	return "", fmt.Errorf("API key not found. Set GEMINI_API_KEY or store a key via the credential prompt")
}

// SaveAPIKey persists a new API key to the credential file, replacing any
// previous one. The file is owner-only; a leaked key bills the user's quota.
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("refusing to store an empty API key")
	}

	credPath, err := getCredentialPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(credPath), 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	if err := os.WriteFile(credPath, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	log.Info().Str("file", credPath).Msg("Stored new API key")
	return nil
}

// DeleteAPIKey removes the stored credential file, falling back to the
// environment default on the next GetAPIKey call.
func DeleteAPIKey() error {
	credPath, err := getCredentialPath()
	if err != nil {
		return err
	}
	if err := os.Remove(credPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// getFromFile reads the API key from the stored credential file.
func getFromFile() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(credPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("credential file not found at %s", credPath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat credential file: %w", err)
	}

	// Credential file must be owner-only.
	if mode := fi.Mode().Perm(); mode&0o077 != 0 {
		log.Warn().
			Str("file", credPath).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Credential file has insecure permissions (should be 0600); skipping")
		return "", fmt.Errorf("credential file %s has insecure permissions", credPath)
	}

	data, err := os.ReadFile(credPath)
	if err != nil {
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// getCredentialPath returns the full path to the credential file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, credentialFile), nil
}
