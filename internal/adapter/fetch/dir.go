package fetch

import (
	"context"
	"fmt"
	"io/fs"

	"go.ngs.io/woa-api/internal/domain"
)

// DirSource serves archives already extracted under Dir and never downloads.
type DirSource struct {
	Dir string
}

// Files returns the CSV paths of a previously extracted archive.
func (s DirSource) Files(_ context.Context, sel domain.ArchiveSelector) ([]string, error) {
	sel, err := sel.Normalize()
	if err != nil {
		return nil, err
	}
	files, err := listCSV(extractDir(s.Dir, sel))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("archive %s has no extracted files: %w", sel.ArchiveName(), fs.ErrNotExist)
	}
	return files, nil
}
