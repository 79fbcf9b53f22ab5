package extractor

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/normalize"
)

// ErrNameMissing means the identity block resolved to an empty name.
var ErrNameMissing = errors.New("identity block has no student name")

// ExtractProfile reads the identity block of the page shown after a search.
// It returns normalize.ErrAbsentStudent when the portal printed the
// "no such student" sentinel and ErrNameMissing when no name could be
// resolved. The returned profile has no ID; the caller owns that.
func ExtractProfile(doc *goquery.Document) (*model.StudentProfile, normalize.Layout, error) {
	items := spanTexts(doc.Selection)

	identity, err := normalize.ResolveIdentity(items)
	if err != nil {
		return nil, 0, err
	}
	if identity.Name == "" {
		return nil, identity.Layout, fmt.Errorf("%w (%d labels on page)", ErrNameMissing, len(items))
	}

	return &model.StudentProfile{
		Name:               identity.Name,
		OrientationProfile: identity.OrientationProfile,
		ProfileLabel:       identity.ProfileLabel,
	}, identity.Layout, nil
}

// ExtractProfileHTML is ExtractProfile over raw markup.
func ExtractProfileHTML(html string) (*model.StudentProfile, normalize.Layout, error) {
	doc, err := Parse(html)
	if err != nil {
		return nil, 0, err
	}
	return ExtractProfile(doc)
}
