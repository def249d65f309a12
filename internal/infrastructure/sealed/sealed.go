// Package sealed encrypts secrets at rest with age. Ciphertext is
// base64-encoded so it fits in string columns and DynamoDB attributes.
package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
)

// Sealer encrypts values to a fixed set of age recipients. A Sealer with no
// recipients passes values through unchanged.
type Sealer struct {
	recipients []age.Recipient
}

// NewSealer parses recipientKeys (age1... format).
func NewSealer(recipientKeys []string) (*Sealer, error) {
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return &Sealer{recipients: recipients}, nil
}

// Enabled reports whether Seal actually encrypts.
func (s *Sealer) Enabled() bool {
	return len(s.recipients) > 0
}

// Seal encrypts plaintext to every recipient.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if !s.Enabled() {
		return plaintext, nil
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts a value produced by Seal using an AGE-SECRET-KEY-1... identity.
func Open(ciphertext, identityKey string) (string, error) {
	identity, err := age.ParseX25519Identity(identityKey)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return string(plaintext), nil
}
