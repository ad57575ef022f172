package epub

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
)

// parseNavDocument extracts every list link of an EPUB 3 navigation
// document. The document is parsed as HTML so named entities and minor
// markup errors are tolerated.
func parseNavDocument(data []byte, rootPath string) ([]NavEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse navigation document: %w", err)
	}

	var entries []NavEntry
	doc.Find("li a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		entries = append(entries, NavEntry{
			Href: rootPath + navFragment(href),
			Text: strings.TrimSpace(a.Text()),
		})
	})
	return entries, nil
}

// parseNCX extracts the navPoints of an EPUB 2 toc.ncx in document order.
func parseNCX(data []byte, rootPath string) ([]NavEntry, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	var entries []NavEntry
	for _, np := range xmlquery.Find(doc, "//navPoint") {
		var label, src string
		if t := xmlquery.FindOne(np, "./navLabel/text"); t != nil {
			label = strings.TrimSpace(t.InnerText())
		}
		if c := xmlquery.FindOne(np, "./content"); c != nil {
			src = c.SelectAttr("src")
		}
		entries = append(entries, NavEntry{
			Href: rootPath + navFragment(src),
			Text: label,
		})
	}
	return entries, nil
}

// navFragment keeps only the fragment of href. Links without a fragment
// point at the start of their document, whose block id is the filename
// stem.
func navFragment(href string) string {
	path, fragment := splitFragment(href)
	if fragment != "" {
		return fragment
	}
	return stem(baseName(path))
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (path, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	path = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return path, fragment
}
