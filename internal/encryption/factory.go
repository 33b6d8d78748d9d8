package encryption

import (
	"fmt"

	"bk-go/internal/bk"
	"bk-go/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (bk.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return bk.NewNopEncryptor(), nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("%w encryption type: %q", bk.ErrUnsupported, cfg.Type)
	}
}
