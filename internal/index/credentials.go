package index

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Environment variables carrying the upload credentials. They are
// injected by the CI context and must never be logged.
const (
	UsernameEnv = "RELEASER_INDEX_USERNAME"
	PasswordEnv = "RELEASER_INDEX_PASSWORD"
)

var ErrMissingCredentials = errors.New("index upload credentials are not set")

// Credentials holds the index upload credentials.
type Credentials struct {
	Username string
	Password string
}

// CredentialsFromEnv reads the upload credentials from the environment.
// A missing or blank value is a loud error: publication must never be
// silently skipped because the CI context forgot to inject a secret.
func CredentialsFromEnv() (Credentials, error) {
	username := strings.TrimSpace(os.Getenv(UsernameEnv))
	if username == "" {
		return Credentials{}, errors.Wrap(ErrMissingCredentials, UsernameEnv)
	}

	password := strings.TrimSpace(os.Getenv(PasswordEnv))
	if password == "" {
		return Credentials{}, errors.Wrap(ErrMissingCredentials, PasswordEnv)
	}

	return Credentials{Username: username, Password: password}, nil
}

// String keeps credentials out of logs and formatted errors.
func (c Credentials) String() string {
	return "index credentials (redacted)"
}

// GoString keeps credentials out of %#v output.
func (c Credentials) GoString() string {
	return "index.Credentials{redacted}"
}
