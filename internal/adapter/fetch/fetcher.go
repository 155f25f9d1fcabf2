// Package fetch downloads and unpacks WOA23 CSV archives.
package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"go.ngs.io/woa-api/internal/domain"
)

// DefaultBaseURL is the NCEI root of the WOA23 data tree.
const DefaultBaseURL = "https://www.ncei.noaa.gov/data/oceans/woa/WOA23/DATA"

// progressStep is how many bytes pass between progress log lines.
const progressStep = 16 << 20

// Fetcher materialises archives under Dir, downloading them when missing.
type Fetcher struct {
	Dir     string
	BaseURL string
	Client  *http.Client
	Ledger  *Ledger

	log   logrus.FieldLogger
	now   func() time.Time
	group singleflight.Group
}

// NewFetcher creates a fetcher storing archives in dir.
func NewFetcher(dir, baseURL string, log logrus.FieldLogger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		Dir:     dir,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  http.DefaultClient,
		Ledger:  NewLedger(dir),
		log:     log,
		now:     time.Now,
	}
}

// URL returns the download URL of the archive.
func (f *Fetcher) URL(sel domain.ArchiveSelector) string {
	return f.BaseURL + "/" + sel.ArchivePath()
}

// Files returns the sorted CSV paths of the archive, downloading and
// extracting it first if needed. Concurrent calls for one archive share
// a single download, which outlives any one caller giving up on it.
func (f *Fetcher) Files(ctx context.Context, sel domain.ArchiveSelector) ([]string, error) {
	sel, err := sel.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(sel.ArchiveName(), func() (interface{}, error) {
		return f.materialise(shared, sel)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		files := res.Val.([]string)
		return append([]string(nil), files...), nil
	}
}

func (f *Fetcher) materialise(ctx context.Context, sel domain.ArchiveSelector) ([]string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	archive := filepath.Join(f.Dir, sel.ArchiveName())
	log := f.log.WithFields(logrus.Fields{"archive": sel.ArchiveName()})

	if _, err := os.Stat(archive); err == nil {
		log.Info("Archive already present, skipping download")
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := f.download(ctx, f.URL(sel), archive, log); err != nil {
			return nil, err
		}
		if err := f.Ledger.Record(sel.ArchiveName(), sel.Variable, f.now()); err != nil {
			return nil, fmt.Errorf("failed to record download: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	dir := extractDir(f.Dir, sel)
	files, err := listCSV(dir)
	if err == nil && len(files) > 0 {
		log.WithField("files", len(files)).Debug("Using previously extracted files")
		return files, nil
	}

	if err := extract(archive, dir, log); err != nil {
		return nil, err
	}
	files, err = listCSV(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("archive %s contains no CSV files", sel.ArchiveName())
	}
	log.WithField("files", len(files)).Info("Archive extracted")
	return files, nil
}

func (f *Fetcher) download(ctx context.Context, url, dest string, log logrus.FieldLogger) error {
	log = log.WithField("url", url)
	log.Info("Downloading archive")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part*")
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	pw := &progressWriter{w: tmp, total: resp.ContentLength, log: log}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}

	log.WithField("bytes", pw.written).Info("Download complete")
	return nil
}

type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	next    int64
	log     logrus.FieldLogger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.written >= p.next {
		p.log.WithFields(logrus.Fields{"bytes": p.written, "total": p.total}).Debug("Download progress")
		p.next = p.written + progressStep
	}
	return n, err
}

// extractDir is where the archive's members are unpacked.
func extractDir(root string, sel domain.ArchiveSelector) string {
	return filepath.Join(root, strings.TrimSuffix(sel.ArchiveName(), ".tar.gz"))
}

// extract unpacks a tar.gz archive into dir and gunzips every .csv.gz member.
// Members are staged in a temporary directory so dir is never left half-written.
func extract(archive, dir string, log logrus.FieldLogger) error {
	staging, err := os.MkdirTemp(filepath.Dir(dir), filepath.Base(dir)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := untar(archive, staging, log); err != nil {
		return err
	}

	err = filepath.WalkDir(staging, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".csv.gz") {
			return nil
		}
		return gunzip(path)
	})
	if err != nil {
		return fmt.Errorf("failed to decompress archive members: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("failed to move extracted files: %w", err)
	}
	return nil
}

func untar(archive, dest string, log logrus.FieldLogger) error {
	file, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", archive, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", archive, err)
		}

		target, err := memberPath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeMember(target, tr); err != nil {
				return err
			}
		default:
			log.WithField("member", hdr.Name).Debug("Skipping non-regular archive member")
		}
	}
}

// memberPath resolves an archive member name inside dest.
func memberPath(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes extraction directory", name)
	}
	return filepath.Join(dest, clean), nil
}

func writeMember(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

// gunzip replaces path (a .gz file) with its decompressed content.
func gunzip(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer func() { _ = gz.Close() }()

	if err := writeMember(strings.TrimSuffix(path, ".gz"), gz); err != nil {
		return err
	}
	_ = in.Close()
	return os.Remove(path)
}

// listCSV returns the sorted .csv files below dir.
func listCSV(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list CSV files in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
