// Package archive packages staging directories into single-file
// artifacts (tar.gz or zip) and routes them to a storage backend.
package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"bk-go/internal/bk"
)

// packer is one archive format implementation. Packers work on file
// paths rather than streams because zip reading needs random access.
type packer interface {
	pack(srcDir, destFile string) error
	unpack(srcFile, destDir string) error
	ext() string
}

func packerFor(format string) (packer, error) {
	switch format {
	case bk.FormatTar:
		return tarPacker{}, nil
	case bk.FormatZip:
		return zipPacker{}, nil
	default:
		return nil, fmt.Errorf("%w archive format: %q", bk.ErrUnsupported, format)
	}
}

// securePath joins name under dir, rejecting entries that would escape
// it ("zip slip").
func securePath(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if target != dir && !strings.HasPrefix(target, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}
