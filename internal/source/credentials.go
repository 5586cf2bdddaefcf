package source

import (
	"bufio"
	"os"

	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/logging"
)

// Credentials holds an API key pair loaded from a key file.
type Credentials struct {
	Key    string
	Secret string
}

// Empty reports whether either half of the pair is missing.
func (c Credentials) Empty() bool {
	return c.Key == "" || c.Secret == ""
}

// LoadCredentials reads a key file with the key on the first line and the
// secret on the second.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, apperrors.NewCredentialError(path, err)
	}
	defer f.Close()

	var creds Credentials
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		creds.Key = scanner.Text()
	}
	if scanner.Scan() {
		creds.Secret = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, apperrors.NewCredentialError(path, err)
	}
	return creds, nil
}

// loadOrEmpty degrades a missing or unreadable key file to empty credentials
// with a warning. Public endpoints keep working; any later private call
// fails with an authentication error instead.
func loadOrEmpty(sourceName, path string) Credentials {
	if path == "" {
		return Credentials{}
	}
	creds, err := LoadCredentials(path)
	if err != nil {
		logging.GetGlobalLogger().WithFields(map[string]interface{}{
			"source": sourceName,
			"path":   path,
		}).Warn("Key file not readable, continuing with empty credentials")
		return Credentials{}
	}
	return creds
}
