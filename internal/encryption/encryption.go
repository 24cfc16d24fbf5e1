// Package encryption protects index snapshots before they leave the machine
// for an archive.
package encryption

import "io"

// Encryptor encrypts snapshot streams with a locally stored key pair.
type Encryptor interface {
	// Setup generates and stores a new key pair, protecting the private
	// key with the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the stored private key with the passphrase and
	// returns a context for decrypting snapshots.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
