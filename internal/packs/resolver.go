package packs

import (
	"fmt"
	"strings"
)

// DefaultBaseURL hosts every pack archive.
const DefaultBaseURL = "https://packs.ppy.sh"

// Kind selects the decoder used for a pack archive.
type Kind string

const (
	// KindZip archives support per-entry random access ("A").
	KindZip Kind = "zip"
	// KindSevenZip archives need a full sequential decode ("B").
	KindSevenZip Kind = "7z"
)

func (k Kind) String() string { return string(k) }

// Thresholds of the remote naming scheme. Packs from osuPrefixFrom onwards
// (plus the exceptions below) carry the "osu!" prefix, packs from zipFrom
// onwards are zips, everything older is 7z.
const (
	osuPrefixFrom = 1318
	zipFrom       = 1300
)

// Older packs that were re-uploaded under the newer naming convention.
var osuPrefixExceptions = map[int]struct{}{
	5: {}, 124: {}, 267: {}, 415: {}, 479: {}, 884: {},
}

// Target is where a pack lives and how to decode it.
type Target struct {
	ID   int
	URL  string
	Kind Kind
}

// ResolutionError is returned by resolvers that cannot map an id. The default
// Resolver is total and never produces it.
type ResolutionError struct {
	ID     int
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve pack %d: %s", e.ID, e.Reason)
}

// Resolver maps pack ids to remote addresses. It holds no state beyond the
// base URL and is safe for concurrent use.
type Resolver struct {
	BaseURL string
}

// NewResolver returns a Resolver for baseURL, falling back to DefaultBaseURL.
func NewResolver(baseURL string) Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Resolver{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Resolve returns the address and archive kind for id. The address table is
// a compatibility contract with the remote host and must not drift.
func (r Resolver) Resolve(id int) Target {
	base := r.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	_, exception := osuPrefixExceptions[id]
	switch {
	case id >= osuPrefixFrom || exception:
		return Target{
			ID:   id,
			URL:  fmt.Sprintf("%s/S%d%%20-%%20osu%%21%%20Beatmap%%20Pack%%20%%23%d.zip", base, id, id),
			Kind: KindZip,
		}
	case id >= zipFrom:
		return Target{
			ID:   id,
			URL:  fmt.Sprintf("%s/S%d%%20-%%20Beatmap%%20Pack%%20%%23%d.zip", base, id, id),
			Kind: KindZip,
		}
	default:
		return Target{
			ID:   id,
			URL:  fmt.Sprintf("%s/S%d%%20-%%20Beatmap%%20Pack%%20%%23%d.7z", base, id, id),
			Kind: KindSevenZip,
		}
	}
}
