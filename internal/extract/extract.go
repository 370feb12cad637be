package extract

import (
	"fmt"
	"log/slog"

	"github.com/brensch/packgrab/internal/packs"
)

// Extractor decodes one archive into destDir and returns the paths it wrote.
type Extractor interface {
	Extract(archivePath, destDir string) ([]string, error)
}

// Error is a failed extraction. Entry is empty when the container itself
// could not be read.
type Error struct {
	Archive string
	Kind    packs.Kind
	Entry   string
	Err     error
}

func (e *Error) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %s archive %s: entry %s: %v", e.Kind, e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("extract %s archive %s: %v", e.Kind, e.Archive, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Set maps an archive kind to its decoder.
type Set map[packs.Kind]Extractor

// ForKind returns the decoder for kind, or nil if the kind is unknown.
func ForKind(kind packs.Kind, logger *slog.Logger) Extractor {
	return Defaults(logger)[kind]
}

// Defaults returns the decoders for every kind the resolver produces.
func Defaults(logger *slog.Logger) Set {
	return Set{
		packs.KindZip:      &Zip{Logger: logger},
		packs.KindSevenZip: &SevenZip{Logger: logger},
	}
}
