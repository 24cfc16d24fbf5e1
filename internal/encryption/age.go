package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"tgsearch-go/internal/config"
)

// AgeEncryptor encrypts snapshots with filippo.io/age X25519 keys. The
// public key sits on disk in plaintext; the private key is wrapped with the
// passphrase via age's scrypt recipient.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a fresh X25519 key pair and stores both halves.
func (e *AgeEncryptor) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, path := range []string{e.publicKeyPath, e.privateKeyPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	privFile, err := os.OpenFile(e.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}
	return nil
}

// Encrypt streams r through age encryption to w using the public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock decrypts the private key with the passphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	privData, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scryptID, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(privData), scryptID)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	keyData, err := io.ReadAll(decReader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted private key: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in private key")
	}

	return &ageDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	if _, err := os.Stat(e.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.privateKeyPath); err != nil {
		return false
	}
	return true
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	pubData, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}
	return recipients[0], nil
}

type ageDecryptionContext struct {
	identity age.Identity
}

func (c *ageDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return nil
}
