package extractor

import (
	"net/url"

	"github.com/arvindnair/webanalyzer/internal/model"
)

// Toggles are the four independent link-extraction toggles: which
// categories of link survive extraction.
type Toggles struct {
	Static   bool
	Dynamic  bool
	Resource bool
	External bool
}

// DefaultToggles enables static extraction only.
func DefaultToggles() Toggles {
	return Toggles{Static: true}
}

// allows reports whether t permits a link of the given type to survive.
func (t Toggles) allows(lt model.LinkType) bool {
	switch lt {
	case model.LinkStaticHTML:
		return t.Static
	case model.LinkDynamicJS:
		return t.Dynamic
	case model.LinkResource:
		return t.Resource
	case model.LinkExternal:
		return t.External
	default:
		return false
	}
}

// ExtractedLink is one surviving, canonicalized link discovered on a page.
type ExtractedLink struct {
	URL       url.URL
	Canonical string
	Type      model.LinkType
}
