package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

const containerPath = "META-INF/container.xml"

// parseContainer extracts the rootfile path from container.xml content.
func parseContainer(content []byte) (string, error) {
	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return "", formatErr(containerPath, "malformed XML", err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath == "" {
			continue
		}
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath != "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	return "", formatErr(containerPath, "missing rootfile tag", nil)
}

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Title      []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator    []string        `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language   []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Meta       []opfMeta       `xml:"meta"`
}

type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParseOPF parses the root content descriptor. Manifest order is kept.
func ParseOPF(content []byte) (*OPF, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	opf := &OPF{NCXID: pkg.Spine.Toc}
	opf.Metadata = parseMetadata(&pkg.Metadata, pkg.UniqueID)

	for _, item := range pkg.Manifest.Items {
		mi := ManifestItem{
			ID:        item.ID,
			Href:      strings.TrimSpace(item.Href),
			MediaType: strings.TrimSpace(item.MediaType),
		}
		if item.Properties != "" {
			mi.Properties = strings.Fields(item.Properties)
		}
		opf.Manifest = append(opf.Manifest, mi)
	}

	for _, ref := range pkg.Spine.ItemRefs {
		opf.Spine = append(opf.Spine, SpineItem{IDRef: ref.IDRef, Linear: ref.Linear != "no"})
	}
	return opf, nil
}

// parseMetadata applies first-occurrence-wins to every field; missing
// elements leave empty strings.
func parseMetadata(meta *opfMetadata, uniqueID string) opfMetadataFields {
	var md opfMetadataFields

	if len(meta.Title) > 0 {
		md.Title = strings.TrimSpace(meta.Title[0])
	}
	if len(meta.Language) > 0 {
		md.Language = strings.TrimSpace(meta.Language[0])
	}
	for _, c := range meta.Creator {
		if c = strings.TrimSpace(c); c != "" {
			md.Creators = append(md.Creators, c)
		}
	}

	for _, id := range meta.Identifier {
		if uniqueID != "" && id.ID == uniqueID {
			md.Identifier = strings.TrimSpace(id.Value)
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = strings.TrimSpace(meta.Identifier[0].Value)
	}

	for _, m := range meta.Meta {
		if m.Name == "cover" && m.Content != "" {
			md.CoverID = m.Content
			break
		}
	}
	return md
}

// Item returns the manifest item with the given id.
func (opf *OPF) Item(id string) (ManifestItem, bool) {
	for _, it := range opf.Manifest {
		if it.ID == id {
			return it, true
		}
	}
	return ManifestItem{}, false
}

// NavItem returns the EPUB 3 navigation document item.
func (opf *OPF) NavItem() (ManifestItem, bool) {
	for _, it := range opf.Manifest {
		if it.HasProperty("nav") {
			return it, true
		}
	}
	return ManifestItem{}, false
}

// NCXItem returns the EPUB 2 toc.ncx item.
func (opf *OPF) NCXItem() (ManifestItem, bool) {
	if opf.NCXID != "" {
		if it, ok := opf.Item(opf.NCXID); ok {
			return it, true
		}
	}
	for _, it := range opf.Manifest {
		if it.MediaType == mediaTypeNCX {
			return it, true
		}
	}
	return ManifestItem{}, false
}

// ContentItems returns every XHTML item except the navigation document,
// in manifest order.
func (opf *OPF) ContentItems() []ManifestItem {
	var out []ManifestItem
	for _, it := range opf.Manifest {
		if it.MediaType != mediaTypeXHTML || it.HasProperty("nav") {
			continue
		}
		out = append(out, it)
	}
	return out
}
