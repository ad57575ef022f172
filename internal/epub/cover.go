package epub

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "first-jpeg"
}

// DetectCover finds the cover image in the manifest. Methods are tried in
// priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. first manifest item of type image/jpeg
//
// Returns nil if no cover image is found.
func (opf *OPF) DetectCover() *CoverInfo {
	for _, item := range opf.Manifest {
		if item.HasProperty("cover-image") {
			return coverFrom(item, "properties")
		}
	}

	if opf.Metadata.CoverID != "" {
		if item, ok := opf.Item(opf.Metadata.CoverID); ok {
			return coverFrom(item, "meta")
		}
	}

	for _, item := range opf.Manifest {
		if item.MediaType == mediaTypeJPEG {
			return coverFrom(item, "first-jpeg")
		}
	}
	return nil
}

func coverFrom(item ManifestItem, method string) *CoverInfo {
	return &CoverInfo{
		ManifestID:      item.ID,
		Href:            item.Href,
		MediaType:       item.MediaType,
		DetectionMethod: method,
	}
}
