package planstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Area is a scoped subset of the spec; its filename stem is its stable
// identifier, immutable after creation (spec.md §3).
type Area struct {
	Number int
	Slug   string
	Body   string
}

var areaSlugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// NormalizeAreaPath validates a relative area path: must live directly
// under areas/, end in .md, contain no "..", and have a two-digit
// numeric prefix followed by a hyphenated slug.
func NormalizeAreaPath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.TrimPrefix(p, "./")
	if strings.Contains(p, "..") {
		return "", &ErrInvalidAreaPath{Path: raw}
	}
	p = strings.TrimPrefix(p, "areas/")
	if strings.Contains(p, "/") {
		return "", &ErrInvalidAreaPath{Path: raw}
	}
	if !strings.HasSuffix(p, ".md") {
		return "", &ErrInvalidAreaPath{Path: raw}
	}
	stem := strings.TrimSuffix(p, ".md")
	idx := strings.Index(stem, "-")
	if idx < 0 {
		return "", &ErrInvalidAreaPath{Path: raw}
	}
	numPart, slugPart := stem[:idx], stem[idx+1:]
	if _, err := strconv.Atoi(numPart); err != nil {
		return "", &ErrInvalidAreaPath{Path: raw}
	}
	if !areaSlugPattern.MatchString(slugPart) {
		return "", &ErrInvalidAreaPath{Path: raw}
	}
	return "areas/" + p, nil
}

// AreaFilename builds the <NN>-<slug>.md filename for an area.
func AreaFilename(number int, slug string) string {
	return fmt.Sprintf("%02d-%s.md", number, slug)
}

// AreaPath builds the plan-relative path for an area.
func AreaPath(number int, slug string) string {
	return "areas/" + AreaFilename(number, slug)
}

// ParseAreaFilename splits "<NN>-<slug>.md" into its number and slug.
func ParseAreaFilename(name string) (number int, slug string, err error) {
	name = strings.TrimSuffix(name, ".md")
	idx := strings.Index(name, "-")
	if idx < 0 {
		return 0, "", &ErrInvalidAreaPath{Path: name}
	}
	n, perr := strconv.Atoi(name[:idx])
	if perr != nil {
		return 0, "", &ErrInvalidAreaPath{Path: name}
	}
	return n, name[idx+1:], nil
}

// NextAreaNumber computes the next monotonic 2-digit area ID, mirroring
// NextTicketNumber's policy but over the areas/ directory's own
// namespace (areas are not shared with the ticket ID space).
func NextAreaNumber(existing []int) int {
	max := 0
	for _, n := range existing {
		if n > max {
			max = n
		}
	}
	return max + 1
}

// AreaID returns an area's stable identifier: its filename stem.
func (a *Area) AreaID() string {
	return fmt.Sprintf("%02d-%s", a.Number, a.Slug)
}

// ValidateAreaReference checks that a ticket's **Area:** field matches an
// area that actually exists in the given set of known area identifiers
// (spec.md §7 AreaMismatch).
func ValidateAreaReference(ticketAreaID string, knownAreaIDs map[string]bool) error {
	if ticketAreaID == "" || knownAreaIDs[ticketAreaID] {
		return nil
	}
	return &ErrAreaMismatch{Expected: "<a known area>", Got: ticketAreaID}
}
