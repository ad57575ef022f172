package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxEntrySize caps the decompressed size of a single entry.
const maxEntrySize int64 = 256 * 1024 * 1024

// Archive provides named access to the entries of an EPUB zip container.
type Archive struct {
	files map[string]*zip.File
	order []string
}

// Blob is a binary entry tagged with a content type.
type Blob struct {
	Name        string // bare filename
	Path        string // full archive path
	ContentType string
	Data        []byte
	// Handle is the locally resolvable reference used inside content blocks.
	Handle string
}

// OpenArchive decodes the zip directory of data.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, formatErr("archive", "not a zip container", err)
	}

	a := &Archive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizePath(f.Name)
		if _, dup := a.files[name]; !dup {
			a.order = append(a.order, name)
		}
		a.files[name] = f
	}
	return a, nil
}

// Has reports whether the archive holds an entry called name.
func (a *Archive) Has(name string) bool {
	_, ok := a.files[normalizePath(name)]
	return ok
}

// Filter returns the entry names accepted by pred, in archive order.
func (a *Archive) Filter(pred func(name string) bool) []string {
	var out []string
	for _, name := range a.order {
		if pred(name) {
			out = append(out, name)
		}
	}
	return out
}

// ReadFile reads the full content of an entry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	name = normalizePath(name)
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	return data, nil
}

// ReadText reads an entry as text.
func (a *Archive) ReadText(name string) (string, error) {
	data, err := a.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBlob reads an entry as binary with a content type inferred from its
// filename.
func (a *Archive) ReadBlob(name string) (*Blob, error) {
	data, err := a.ReadFile(name)
	if err != nil {
		return nil, err
	}
	name = normalizePath(name)
	return &Blob{
		Name:        baseName(name),
		Path:        name,
		ContentType: contentTypeFor(name),
		Data:        data,
	}, nil
}

// contentTypeFor mirrors the reader's image handling: JPEG for .jpg/.jpeg,
// PNG for everything else that is an image.
func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".xhtml", ".html", ".htm":
		return "application/xhtml+xml"
	case ".css":
		return "text/css"
	case ".svg":
		return "image/svg+xml"
	case ".gif":
		return "image/gif"
	}
	return "image/png"
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(p string) string {
	return strings.TrimPrefix(p, "./")
}

// baseName returns the bare filename of an archive path.
func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// dirPrefix returns everything up to and including the last "/" of p.
func dirPrefix(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1]
	}
	return ""
}

// stem strips the extension from a bare filename.
func stem(name string) string {
	if ext := path.Ext(name); ext != "" {
		return strings.TrimSuffix(name, ext)
	}
	return name
}
