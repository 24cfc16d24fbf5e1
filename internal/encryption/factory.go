package encryption

import (
	"fmt"

	"tgsearch-go/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor from configuration. Type
// "none" returns nil: snapshots are archived as-is.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
