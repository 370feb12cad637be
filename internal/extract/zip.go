package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/brensch/packgrab/internal/packs"
)

// Zip extracts kind A archives. Entries are written flat into destDir under
// their base name. A broken entry is logged and skipped; only a container
// that cannot be opened fails the archive.
type Zip struct {
	Logger *slog.Logger
}

func (z *Zip) Extract(archivePath, destDir string) ([]string, error) {
	l := z.Logger.With(slog.String("archive", archivePath), slog.String("kind", string(packs.KindZip)))

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &Error{Archive: archivePath, Kind: packs.KindZip, Err: fmt.Errorf("open container: %w", err)}
	}
	defer r.Close()

	var written []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		name, ok := flatName(f.Name)
		if !ok {
			l.Warn("Skipping entry with unsafe name.", slog.String("entry", f.Name))
			continue
		}
		outPath := filepath.Join(destDir, name)
		if err := writeZipEntry(f, outPath); err != nil {
			l.Warn("Failed to extract entry, skipping.", slog.String("entry", f.Name), "error", err)
			continue
		}
		written = append(written, outPath)
	}
	l.Debug("Zip extraction complete.", slog.Int("files", len(written)), slog.Int("entries", len(r.File)))
	return written, nil
}

// flatName reduces an entry name to a file name that stays inside the
// destination directory.
func flatName(entry string) (string, bool) {
	base := path.Base(strings.ReplaceAll(entry, `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		return "", false
	}
	return base, filepath.IsLocal(base)
}

func writeZipEntry(f *zip.File, outPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	outFile, err := os.Create(outPath)
	if err != nil {
		rc.Close()
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	_, copyErr := io.Copy(outFile, rc)
	if err := errors.Join(copyErr, outFile.Close(), rc.Close()); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}
