package secrets

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"
)

// Redacted replaces the credential value anywhere it might be rendered.
const Redacted = "[redacted]"

// Credential is an opaque publish secret. It is decrypted only on the
// success branch of the outcome router and redacts itself in any string or
// log rendering; callers that genuinely need the value use Reveal.
type Credential struct {
	token string
}

// Reveal returns the secret value.
func (c Credential) Reveal() string { return c.token }

// Empty reports whether the credential holds no value.
func (c Credential) Empty() bool { return c.token == "" }

func (c Credential) String() string { return Redacted }

// GoString prevents %#v from exposing the token.
func (c Credential) GoString() string { return "secrets.Credential{" + Redacted + "}" }

// LogValue keeps the credential out of structured logs.
func (c Credential) LogValue() slog.Value { return slog.StringValue(Redacted) }

// Load decrypts the age-encrypted credential file using the identity file.
func Load(identityPath, credentialPath string) (Credential, error) {
	identityFile, err := os.Open(identityPath)
	if err != nil {
		return Credential{}, fmt.Errorf("open identity file: %w", err)
	}
	defer identityFile.Close()

	identities, err := age.ParseIdentities(identityFile)
	if err != nil {
		return Credential{}, fmt.Errorf("parse identities: %w", err)
	}
	if len(identities) == 0 {
		return Credential{}, errors.New("identity file holds no identities")
	}

	credentialFile, err := os.Open(credentialPath)
	if err != nil {
		return Credential{}, fmt.Errorf("open credential file: %w", err)
	}
	defer credentialFile.Close()

	reader, err := age.Decrypt(credentialFile, identities...)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypt credential: %w", err)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}

	token := strings.TrimSpace(string(payload))
	if token == "" {
		return Credential{}, errors.New("credential file decrypted to an empty token")
	}
	return Credential{token: token}, nil
}
