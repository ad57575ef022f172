package epub

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

type fixtureFile struct {
	Name string
	Body []byte
}

// buildEPUB writes files into an in-memory zip in the given order.
func buildEPUB(t *testing.T, files []fixtureFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("failed to create mimetype: %v", err)
	}
	mw.Write([]byte("application/epub+zip"))

	for _, f := range files {
		fw, err := w.Create(f.Name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", f.Name, err)
		}
		if _, err := fw.Write(f.Body); err != nil {
			t.Fatalf("failed to write %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func tinyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const sampleOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Sample Book</dc:title>
    <dc:title>Second Title</dc:title>
    <dc:creator>Jane Doe</dc:creator>
    <dc:creator>John Roe</dc:creator>
    <dc:language>ja</dc:language>
    <dc:identifier id="other">urn:other</dc:identifier>
    <dc:identifier id="bookid">urn:uuid:1234</dc:identifier>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>
    <item id="p1" href="text/p-001.xhtml" media-type="application/xhtml+xml"/>
    <item id="p2" href="text/p-002.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="p1"/>
    <itemref idref="p2"/>
  </spine>
</package>`

const sampleNav = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Navigation</title></head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Navigation</h1>
    <ol>
      <li><a href="text/p-002.xhtml#ch2">第二章</a></li>
    </ol>
  </nav>
</body>
</html>`

const samplePage1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Cover</title></head>
<body>
  <div class="cover"><img src="../images/cover.jpg" alt="cover"/></div>
  <p id="intro">はじめに</p>
</body>
</html>`

const samplePage2 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 2</title></head>
<body>
  <h1 id="ch2">Chapter 2</h1>
  <p>One <ruby>漢<rt>かん</rt></ruby></p>
  <p>See <a href="p-001.xhtml#intro">the intro</a>.</p>
</body>
</html>`

// sampleEPUB is the reference fixture: a nav document, two content
// documents stored in reverse manifest order and one JPEG.
func sampleEPUB(t *testing.T) []byte {
	t.Helper()
	return buildEPUB(t, []fixtureFile{
		{Name: "META-INF/container.xml", Body: []byte(containerXML)},
		{Name: "OEBPS/content.opf", Body: []byte(sampleOPF)},
		{Name: "OEBPS/text/p-002.xhtml", Body: []byte(samplePage2)},
		{Name: "OEBPS/nav.xhtml", Body: []byte(sampleNav)},
		{Name: "OEBPS/text/p-001.xhtml", Body: []byte(samplePage1)},
		{Name: "OEBPS/images/cover.jpg", Body: tinyJPEG(t, 4, 6)},
	})
}
