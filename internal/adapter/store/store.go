package store

import (
	"context"

	"go.ngs.io/woa-api/internal/domain"
)

// FileSource resolves an archive to the CSV files it contains.
type FileSource interface {
	// Files returns the CSV paths of the archive, materialising it if needed.
	Files(ctx context.Context, sel domain.ArchiveSelector) ([]string, error)
}

// GridLoader builds a climatology grid from a CSV file set.
type GridLoader interface {
	// Load selects the files matching field and timeCode and fills a grid from them.
	Load(files []string, field domain.FieldCode, timeCode domain.TimeCode) (*domain.Grid, *domain.LoadReport, error)
}
