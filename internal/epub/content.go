package epub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epub-reader/internal/content"
)

// Content is the normalized, renderable form of a book.
type Content struct {
	Blocks     []*content.Block
	Navigation []NavEntry
	Images     *ImageMap
	// Defects lists references that could not be resolved.
	Defects []Defect
}

// refAttr carries the bare filename of an image reference from the
// rewrite pass to the tree builder.
const refAttr = "data-epub-ref"

// Normalize loads every content document of the book in manifest order,
// rewrites image references to ImageMap handles and links to fragments,
// and returns the resulting blocks.
func Normalize(ctx context.Context, a *Archive, rootPath, rootContentPath string, logger *slog.Logger) (*Content, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()

	opf, err := readOPF(a, rootContentPath)
	if err != nil {
		return nil, err
	}

	c := &Content{}

	nav, err := loadNavigation(a, opf, rootPath)
	if err != nil {
		if !errors.Is(err, errNavSyntax) {
			return nil, err
		}
		logger.Warn("navigation ignored", "error", err)
	}
	c.Navigation = nav

	c.Images, err = loadImages(a)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	items := opf.ContentItems()
	docs := make([][]byte, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := rootPath + item.Href
			data, err := a.ReadFile(path)
			if err != nil {
				return formatErr(path, "manifest document cannot be read", err)
			}
			docs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, item := range items {
		block, defects, err := normalizeDocument(rootPath+item.Href, docs[i], c.Images)
		if err != nil {
			return nil, err
		}
		for _, d := range defects {
			logger.Warn("unresolved reference", "kind", d.Kind, "ref", d.Ref, "block", d.Block)
		}
		c.Defects = append(c.Defects, defects...)
		c.Blocks = append(c.Blocks, block)
	}

	anchors := content.Anchors(c.Blocks)
	for _, b := range c.Blocks {
		for _, l := range content.Links([]*content.Block{b}) {
			if l.Href != "" && !anchors[strings.TrimPrefix(l.Href, "#")] {
				d := Defect{Kind: DefectLink, Ref: l.Href, Block: b.ID}
				logger.Warn("unresolved reference", "kind", d.Kind, "ref", d.Ref, "block", d.Block)
				c.Defects = append(c.Defects, d)
			}
		}
	}

	logger.Debug("epub loaded",
		"blocks", len(c.Blocks),
		"images", c.Images.Len(),
		"navigation", len(c.Navigation),
		"elapsed", time.Since(start))
	return c, nil
}

// errNavSyntax marks a navigation document that was read but could not be
// parsed. The book stays readable without navigation.
var errNavSyntax = errors.New("malformed navigation")

func loadNavigation(a *Archive, opf *OPF, rootPath string) ([]NavEntry, error) {
	if item, ok := opf.NavItem(); ok {
		path := rootPath + item.Href
		data, err := a.ReadFile(path)
		if err != nil {
			return nil, formatErr(path, "navigation document cannot be read", err)
		}
		entries, err := parseNavDocument(data, rootPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errNavSyntax, path, err)
		}
		return entries, nil
	}
	if item, ok := opf.NCXItem(); ok {
		path := rootPath + item.Href
		data, err := a.ReadFile(path)
		if err != nil {
			return nil, formatErr(path, "NCX cannot be read", err)
		}
		entries, err := parseNCX(data, rootPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errNavSyntax, path, err)
		}
		return entries, nil
	}
	return nil, nil
}

// normalizeDocument parses one XHTML document and converts its body into a
// block.
func normalizeDocument(path string, data []byte, images *ImageMap) (*content.Block, []Defect, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, formatErr(path, "failed to parse XHTML", err)
	}

	block := &content.Block{ID: stem(baseName(path)), Source: path}
	var defects []Defect

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if d, ok := rewriteImage(s.Get(0), src, "src", images, block.ID); !ok {
			defects = append(defects, d)
		}
	})
	doc.Find("image").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		key, ref := imageHref(n)
		if d, ok := rewriteImage(n, ref, key, images, block.ID); !ok {
			defects = append(defects, d)
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		s.SetAttr("href", "#"+linkFragment(href))
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return block, defects, nil
	}
	for c := body.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if n := convert(c); n != nil {
			block.Children = append(block.Children, n)
		}
	}
	return block, defects, nil
}

// rewriteImage replaces the reference stored in attribute key with the
// handle of its bare filename. Unresolved references are cleared.
func rewriteImage(n *html.Node, ref, key string, images *ImageMap, blockID string) (Defect, bool) {
	name := imageName(ref)
	setAttr(n, refAttr, name)
	if b, ok := images.Lookup(name); ok {
		setAttr(n, key, b.Handle)
		return Defect{}, true
	}
	setAttr(n, key, "")
	return Defect{Kind: DefectImage, Ref: ref, Block: blockID}, false
}

// imageHref returns the attribute key holding an SVG image reference and
// its value. The HTML parser stores xlink:href as namespace "xlink" with
// key "href".
func imageHref(n *html.Node) (key, value string) {
	for _, a := range n.Attr {
		if a.Key == "href" || a.Key == "xlink:href" {
			return a.Key, a.Val
		}
	}
	return "href", ""
}

func imageName(ref string) string {
	ref, _ = splitFragment(ref)
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	if u, err := url.PathUnescape(ref); err == nil {
		ref = u
	}
	return baseName(ref)
}

// linkFragment keeps only the fragment of a hyperlink target; a link to a
// whole document targets the block id of that document.
func linkFragment(href string) string {
	return navFragment(href)
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// convert builds the typed node of an HTML node and its subtree.
func convert(n *html.Node) content.Node {
	switch n.Type {
	case html.TextNode:
		if n.Data == "" {
			return nil
		}
		return &content.Text{Value: n.Data}
	case html.ElementNode:
	default:
		return nil
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title, atom.Link, atom.Meta:
		return nil
	case atom.Br:
		return &content.Break{}
	case atom.Img:
		return newImage(n, attr(n, "src"), false)
	case atom.Image:
		_, ref := imageHref(n)
		return newImage(n, ref, true)
	case atom.P:
		p := content.NewParagraph(children(n)...)
		p.ID, p.Class = attr(n, "id"), attr(n, "class")
		return p
	case atom.A:
		return &content.Link{Href: attr(n, "href"), ID: attr(n, "id"), Children: children(n)}
	case atom.Ruby:
		return &content.Ruby{Children: children(n)}
	case atom.Rt, atom.Rp:
		return &content.RubyText{Children: children(n)}
	}

	if level, ok := headingLevels[n.DataAtom]; ok {
		return &content.Heading{Level: level, ID: attr(n, "id"), Children: children(n)}
	}
	// svg <image> is foreign content and may not carry the atom.
	if n.Data == "image" {
		_, ref := imageHref(n)
		return newImage(n, ref, true)
	}
	return &content.Element{Tag: n.Data, ID: attr(n, "id"), Class: attr(n, "class"), Children: children(n)}
}

func children(n *html.Node) []content.Node {
	var out []content.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if cn := convert(c); cn != nil {
			out = append(out, cn)
		}
	}
	return out
}

func newImage(n *html.Node, handle string, vector bool) *content.Image {
	return &content.Image{
		Ref: content.ImageRef{
			Name:   attr(n, refAttr),
			Handle: handle,
			Broken: handle == "",
		},
		Alt:    attr(n, "alt"),
		Vector: vector,
	}
}
