package epub

// Metadata is the result of the metadata-only load of a book.
type Metadata struct {
	Title      string
	Creator    string   // first creator
	Creators   []string // all creators in document order
	Language   string
	Identifier string

	// RootPath is the directory prefix of the OPF, e.g. "OEBPS/".
	RootPath string
	// RootContentPath is the full archive path of the OPF.
	RootContentPath string
	// CoverPath is the full archive path of the cover image, empty when absent.
	CoverPath string
}

// OPF represents the parsed Open Package Format document
type OPF struct {
	Metadata opfMetadataFields
	// Manifest items in declaration order. Hrefs are manifest-relative.
	Manifest []ManifestItem
	Spine    []SpineItem
	// NCXID is the manifest id named by the spine toc attribute.
	NCXID string
}

type opfMetadataFields struct {
	Title      string
	Creators   []string
	Language   string
	Identifier string
	CoverID    string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares prop.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// NavEntry is one table-of-contents entry. Href is fragment-only, joined
// with the book root path.
type NavEntry struct {
	Href string
	Text string
}

const (
	mediaTypeXHTML = "application/xhtml+xml"
	mediaTypeNCX   = "application/x-dtbncx+xml"
	mediaTypeJPEG  = "image/jpeg"
)
