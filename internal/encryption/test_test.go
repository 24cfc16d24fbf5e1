package encryption

import (
	"bytes"
	"testing"

	"tgsearch-go/internal/config"
)

func noneConfig() config.EncryptionConfig {
	return config.EncryptionConfig{Type: "none"}
}

func TestTestEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	input := []byte("snapshot contents")

	var encrypted bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(input), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(encrypted.Bytes(), input) {
		t.Error("encrypted output is identical to plaintext")
	}

	dctx, err := e.Unlock("ignored")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var decrypted bytes.Buffer
	if err := dctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(decrypted.Bytes(), input) {
		t.Errorf("Decrypt() = %q, want %q", decrypted.Bytes(), input)
	}
}

func TestTestEncryptor_RejectsForeignData(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	dctx, err := e.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var out bytes.Buffer
	if err := dctx.Decrypt(bytes.NewReader([]byte("plain, unencrypted data")), &out); err == nil {
		t.Error("Decrypt() error = nil for unencrypted input, want error")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("none returns nil", func(t *testing.T) {
		t.Parallel()
		enc, err := NewEncryptorFromConfig(noneConfig())
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if enc != nil {
			t.Errorf("encryptor = %v, want nil", enc)
		}
	})

	t.Run("age", func(t *testing.T) {
		t.Parallel()
		cfg := noneConfig()
		cfg.Type = "age"
		enc, err := NewEncryptorFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*AgeEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *AgeEncryptor", enc)
		}
	})

	t.Run("test", func(t *testing.T) {
		t.Parallel()
		cfg := noneConfig()
		cfg.Type = "test"
		enc, err := NewEncryptorFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*TestEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *TestEncryptor", enc)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		cfg := noneConfig()
		cfg.Type = "rot13"
		if _, err := NewEncryptorFromConfig(cfg); err == nil {
			t.Error("NewEncryptorFromConfig() error = nil, want error")
		}
	})
}
