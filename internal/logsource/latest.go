// Package logsource supplies raw combat log lines by following the newest file
// in the ACT log directory.
package logsource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nfrund/actwatch/internal/domain"
	"github.com/spf13/afero"
)

// LatestFile returns the path of the most recently modified regular file in
// dir. Ties on modification time go to the lexically greater name, which for
// ACT's dated file names is the newer one.
func LatestFile(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("read log directory %q: %w", dir, err)
	}

	var best os.FileInfo
	for _, fi := range entries {
		if !fi.Mode().IsRegular() {
			continue
		}
		if best == nil ||
			fi.ModTime().After(best.ModTime()) ||
			(fi.ModTime().Equal(best.ModTime()) && fi.Name() > best.Name()) {
			best = fi
		}
	}

	if best == nil {
		return "", fmt.Errorf("%s: %w", dir, domain.ErrNoLogFiles)
	}
	return filepath.Join(dir, best.Name()), nil
}
