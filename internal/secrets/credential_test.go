package secrets_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"strata/internal/secrets"
)

func writeEncryptedCredential(t *testing.T, token string) (identityPath, credentialPath string) {
	t.Helper()
	dir := t.TempDir()

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	identityPath = filepath.Join(dir, "identity.txt")
	if err := os.WriteFile(identityPath, []byte(identity.String()+"\n"), 0o600); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	var encrypted bytes.Buffer
	w, err := age.Encrypt(&encrypted, identity.Recipient())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := w.Write([]byte(token + "\n")); err != nil {
		t.Fatalf("write token: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close encryptor: %v", err)
	}

	credentialPath = filepath.Join(dir, "deploy-token.age")
	if err := os.WriteFile(credentialPath, encrypted.Bytes(), 0o600); err != nil {
		t.Fatalf("write credential: %v", err)
	}
	return identityPath, credentialPath
}

func TestLoadRoundTrip(t *testing.T) {
	identityPath, credentialPath := writeEncryptedCredential(t, "gh-deploy-token-123")

	cred, err := secrets.Load(identityPath, credentialPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred.Reveal() != "gh-deploy-token-123" {
		t.Fatalf("Reveal = %q", cred.Reveal())
	}
	if cred.Empty() {
		t.Fatal("credential should not be empty")
	}
}

func TestCredentialRedactsItself(t *testing.T) {
	identityPath, credentialPath := writeEncryptedCredential(t, "super-secret")
	cred, err := secrets.Load(identityPath, credentialPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, rendering := range []string{
		cred.String(),
		fmt.Sprintf("%v", cred),
		fmt.Sprintf("%s", cred),
		fmt.Sprintf("%#v", cred),
		cred.LogValue().String(),
	} {
		if strings.Contains(rendering, "super-secret") {
			t.Fatalf("credential leaked through rendering %q", rendering)
		}
		if !strings.Contains(rendering, secrets.Redacted) {
			t.Fatalf("rendering %q should carry the redaction marker", rendering)
		}
	}
}

func TestLoadRejectsWrongIdentity(t *testing.T) {
	_, credentialPath := writeEncryptedCredential(t, "token")

	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	wrongIdentity := filepath.Join(t.TempDir(), "identity.txt")
	if err := os.WriteFile(wrongIdentity, []byte(other.String()+"\n"), 0o600); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	if _, err := secrets.Load(wrongIdentity, credentialPath); err == nil {
		t.Fatal("expected decryption failure with the wrong identity")
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := secrets.Load(filepath.Join(dir, "absent"), filepath.Join(dir, "absent.age")); err == nil {
		t.Fatal("expected error for missing identity file")
	}
}
