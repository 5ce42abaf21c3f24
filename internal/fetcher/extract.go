package fetcher

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelwatch/modelwatch/internal/progress"
)

// extract unpacks a downloaded tar.gz archive next to itself, reporting
// consumption of the compressed stream as extracting progress so subscribers
// see the phase change after the transfer finishes.
func (p *Pool) extract(ctx context.Context, modelName, archivePath string) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	total := info.Size()

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	counter := &countingReader{r: f}
	gz, err := gzip.NewReader(counter)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()

	destDir := strings.TrimSuffix(strings.TrimSuffix(archivePath, ".tar.gz"), ".tgz")
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extract canceled: %w", err)
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}
		if err := p.writeEntry(destDir, hdr, tr); err != nil {
			return err
		}
		p.tracker.Set(modelName, counter.n, total, hdr.Name, progress.StatusExtracting)
	}
	return nil
}

func (p *Pool) writeEntry(destDir string, hdr *tar.Header, tr *tar.Reader) error {
	target, err := safeJoin(destDir, hdr.Name)
	if err != nil {
		return err
	}
	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", target, err)
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", target, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode())
		if err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}
		_, err = io.Copy(out, tr)
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	default:
		// Symlinks and special files are skipped; model archives only
		// carry directories and regular files.
	}
	return nil
}

// safeJoin rejects entries that would escape the extraction root.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction dir", name)
	}
	return target, nil
}

// countingReader tracks compressed bytes consumed from the archive.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
