// Package staging derives the index and alias names used to stage a new
// physical index behind a logical name and later promote it.
package staging

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// StagedSuffix is appended to the logical name to form the staging alias.
	StagedSuffix = "_staged"
	// PreStagedOriginalSuffix names the backup of a concrete live index.
	PreStagedOriginalSuffix = "-pre-staged-original"
	// TimestampLayout is the second-precision stamp embedded in temp index names.
	TimestampLayout = "20060102150405"
	// SuffixLen is the number of lowercase hex characters after the stamp.
	SuffixLen = 8
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_:-]+$`)

// Clock returns the current time.
type Clock func() time.Time

// RandomSource returns SuffixLen lowercase hex characters.
type RandomSource func() (string, error)

// UUIDSource draws the suffix from a random (v4) UUID.
func UUIDSource() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return hex.EncodeToString(id[:])[:SuffixLen], nil
}

// Names is the immutable set of names for one migration session.
type Names struct {
	logical string
	staging string
	temp    string
}

// NewNames computes a fresh temp index name for logical. The clock is read in UTC.
func NewNames(logical string, clock Clock, random RandomSource) (Names, error) {
	if err := ValidateLogicalName(logical); err != nil {
		return Names{}, err
	}
	if clock == nil {
		clock = time.Now
	}
	if random == nil {
		random = UUIDSource
	}
	suffix, err := random()
	if err != nil {
		return Names{}, fmt.Errorf("random suffix: %w", err)
	}
	if !isLowerHex(suffix, SuffixLen) {
		return Names{}, fmt.Errorf("random suffix %q is not %d lowercase hex chars", suffix, SuffixLen)
	}
	return Names{
		logical: logical,
		staging: StagingAliasName(logical),
		temp:    TempIndexName(logical, clock(), suffix),
	}, nil
}

// NamesWithTemp adopts a temp index name produced elsewhere, typically by the
// loader that built the index. temp must match the pattern for logical.
func NamesWithTemp(logical, temp string) (Names, error) {
	if err := ValidateLogicalName(logical); err != nil {
		return Names{}, err
	}
	if _, ok := ParseTempIndex(logical, temp); !ok {
		return Names{}, fmt.Errorf("%q is not a temp index name for %q", temp, logical)
	}
	return Names{logical: logical, staging: StagingAliasName(logical), temp: temp}, nil
}

// NamesFor derives the names of logical's existing stage. TempIndex is empty.
func NamesFor(logical string) (Names, error) {
	if err := ValidateLogicalName(logical); err != nil {
		return Names{}, err
	}
	return Names{logical: logical, staging: StagingAliasName(logical)}, nil
}

// Logical returns the stable logical name.
func (n Names) Logical() string { return n.logical }

// StagingAlias returns the staging alias name.
func (n Names) StagingAlias() string { return n.staging }

// TempIndex returns the temp physical index name, empty for NamesFor.
func (n Names) TempIndex() string { return n.temp }

// ValidateLogicalName checks that name is usable as an index name.
func ValidateLogicalName(name string) error {
	if name == "" {
		return fmt.Errorf("logical name is required")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("logical name %q must match %s", name, nameRegex.String())
	}
	return nil
}

// StagingAliasName returns logical + "_staged".
func StagingAliasName(logical string) string {
	return logical + StagedSuffix
}

// PreStagedOriginalName returns the name of the backup made on first-time migration.
func PreStagedOriginalName(live string) string {
	return live + PreStagedOriginalSuffix
}

// TempIndexName formats <logical>_<YYYYMMDDHHMMSS>-<suffix>.
func TempIndexName(logical string, at time.Time, suffix string) string {
	return logical + "_" + at.UTC().Format(TimestampLayout) + "-" + suffix
}

// TempIndexPattern matches temp index names of logical; group 1 is the stamp.
func TempIndexPattern(logical string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(logical) + `_(\d{14})-[0-9a-f]{8}$`)
}

// ParseTempIndex extracts the stamp of a temp index name of logical.
func ParseTempIndex(logical, name string) (time.Time, bool) {
	m := TempIndexPattern(logical).FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(TimestampLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Newest picks the temp index of logical with the latest stamp. Names sharing
// a stamp are ordered by full string comparison, greatest wins.
func Newest(logical string, candidates []string) (string, bool) {
	var (
		best   string
		bestTS time.Time
		found  bool
	)
	for _, c := range candidates {
		ts, ok := ParseTempIndex(logical, c)
		if !ok {
			continue
		}
		if !found || ts.After(bestTS) || (ts.Equal(bestTS) && c > best) {
			best, bestTS, found = c, ts, true
		}
	}
	return best, found
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	return strings.Trim(s, "0123456789abcdef") == ""
}
