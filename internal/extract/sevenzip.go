package extract

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/brensch/packgrab/internal/packs"
)

// SevenZip extracts kind B archives, preserving entry paths under destDir.
// The first error of any kind aborts the whole archive; files already
// written stay on disk.
type SevenZip struct {
	Logger *slog.Logger
}

func (s *SevenZip) Extract(archivePath, destDir string) ([]string, error) {
	fail := func(entry string, err error) error {
		return &Error{Archive: archivePath, Kind: packs.KindSevenZip, Entry: entry, Err: err}
	}

	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, fail("", fmt.Errorf("open container: %w", err))
	}
	defer r.Close()

	var written []string
	for _, f := range r.File {
		name := strings.ReplaceAll(f.Name, `\`, "/")
		if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}
		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			return written, fail(f.Name, errors.New("entry path escapes destination"))
		}
		outPath := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return written, fail(f.Name, fmt.Errorf("create parent dir: %w", err))
		}
		if err := writeSevenZipEntry(f, outPath); err != nil {
			return written, fail(f.Name, err)
		}
		written = append(written, outPath)
	}
	s.Logger.Debug("7z extraction complete.", slog.String("archive", archivePath), slog.Int("files", len(written)))
	return written, nil
}

// ErrChecksum reports entry data that does not match the CRC32 recorded in
// the archive header.
var ErrChecksum = errors.New("checksum mismatch")

func writeSevenZipEntry(f *sevenzip.File, outPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	outFile, err := os.Create(outPath)
	if err != nil {
		rc.Close()
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	h := crc32.NewIEEE()
	_, copyErr := io.Copy(io.MultiWriter(outFile, h), rc)
	if err := errors.Join(copyErr, outFile.Close(), rc.Close()); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	// A zero CRC32 on a non-empty entry means the archive recorded none.
	if f.UncompressedSize > 0 && f.CRC32 != 0 && h.Sum32() != f.CRC32 {
		os.Remove(outPath)
		return fmt.Errorf("%w: got %08x, header %08x", ErrChecksum, h.Sum32(), f.CRC32)
	}
	return nil
}
