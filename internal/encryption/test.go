package encryption

import (
	"bytes"
	"fmt"
	"io"
)

// testHeader marks data produced by TestEncryptor. The output differs from
// the plaintext but needs no keys or crypto.
var testHeader = []byte("TGSENC\x00\x00")

// TestEncryptor is a deterministic encryptor for tests. It prepends a fixed
// header on encrypt and strips it on decrypt.
type TestEncryptor struct{}

var _ Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor { return &TestEncryptor{} }

func (e *TestEncryptor) Setup(passphrase string) error { return nil }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	return &testDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

type testDecryptionContext struct{}

func (c *testDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
