// Package secrets loads the age-encrypted publish credential. The Credential
// type redacts itself in string and slog renderings so the token cannot leak
// into run logs by accident.
package secrets
