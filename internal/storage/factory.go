package storage

import (
	"fmt"

	"bk-go/internal/bk"
	"bk-go/internal/config"
)

// NewFactory returns a StorageFactory over the configured backends.
// The remote backend is shared across calls so its authenticated session
// is established once and reused.
func NewFactory(cfg *config.Config, logger bk.Logger) bk.StorageFactory {
	var remote *Remote

	return func(kind string) (bk.Storage, error) {
		switch kind {
		case bk.StorageLocal:
			return NewLocal(cfg.BaseDir, logger), nil
		case bk.StorageRemote:
			if remote == nil {
				remote = NewRemote(cfg.Remote, logger)
			}
			return remote, nil
		default:
			return nil, fmt.Errorf("%w storage kind: %q", bk.ErrUnsupported, kind)
		}
	}
}
