package normalize

import (
	"errors"
	"strings"
)

// AbsentStudentSentinel is printed by the portal in place of the identity
// block when the searched ID does not exist.
const AbsentStudentSentinel = "Etudiant inexistant"

// ErrAbsentStudent signals that the portal reported an unknown student.
var ErrAbsentStudent = errors.New("student does not exist on the portal")

// Layout is the order in which the portal printed the identity block.
type Layout int

const (
	// LayoutNameFirst: [name, registration/orientation code, profile label].
	LayoutNameFirst Layout = iota + 1
	// LayoutProfileFirst: [orientation, name, profile label].
	LayoutProfileFirst
)

func (l Layout) String() string {
	switch l {
	case LayoutNameFirst:
		return "name_first"
	case LayoutProfileFirst:
		return "profile_first"
	default:
		return "unknown"
	}
}

// DetectLayout picks the identity layout from the scraped label sequence.
//
// The portal prints the identity block in a different order depending on the
// program type, and the markup carries no field names. Programs that print
// the name first follow it with a code that starts with a digit; programs
// that print the orientation first follow it with the student's name. The
// rule therefore only inspects the first character of the second item. It is a
// guess about markup the portal does not document and will misfire if a
// name ever starts with a digit or a code ever starts with a letter.
//
// An empty second item is classified as LayoutNameFirst, which keeps the
// first item as the name instead of returning an empty one.
func DetectLayout(items []string) Layout {
	second := At(items, 1)
	if !second.IsFound() {
		return LayoutProfileFirst
	}
	text := second.Text()
	if text == "" {
		return LayoutNameFirst
	}
	// ASCII only: codes are printed with Western digits.
	if c := text[0]; '0' <= c && c <= '9' {
		return LayoutNameFirst
	}
	return LayoutProfileFirst
}

// Identity is the resolved identity block.
type Identity struct {
	Layout             Layout
	Name               string
	OrientationProfile string
	ProfileLabel       string
}

// ResolveIdentity applies the sentinel check and the layout rule.
// It returns ErrAbsentStudent when the first item starts with the sentinel.
// A zero-length Name means the block could not be resolved.
func ResolveIdentity(items []string) (Identity, error) {
	if strings.HasPrefix(At(items, 0).Text(), AbsentStudentSentinel) {
		return Identity{}, ErrAbsentStudent
	}

	id := Identity{
		Layout:       DetectLayout(items),
		ProfileLabel: At(items, 2).Text(),
	}

	switch id.Layout {
	case LayoutNameFirst:
		id.Name = At(items, 0).Text()
		id.OrientationProfile = At(items, 1).Text()
	case LayoutProfileFirst:
		id.Name = At(items, 1).Text()
		id.OrientationProfile = At(items, 2).Text()
		if id.OrientationProfile == "" {
			id.OrientationProfile = At(items, 0).Text()
		}
	}

	return id, nil
}
