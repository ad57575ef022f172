package epub

import (
	"regexp"
)

// imagePattern matches the raster images loaded into the ImageMap. The
// whole archive is scanned because manifests under-declare images.
var imagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

const handleScheme = "blob:"

// ImageMap maps bare image filenames to blobs. Two images with the same
// bare name in different directories collide; the last one read wins.
type ImageMap struct {
	byName   map[string]*Blob
	byHandle map[string]*Blob
}

// NewImageMap returns an empty map.
func NewImageMap() *ImageMap {
	return &ImageMap{
		byName:   make(map[string]*Blob),
		byHandle: make(map[string]*Blob),
	}
}

// Add indexes b under its bare filename and assigns its handle.
func (m *ImageMap) Add(b *Blob) {
	if old, ok := m.byName[b.Name]; ok {
		delete(m.byHandle, old.Handle)
	}
	b.Handle = handleScheme + b.Path
	m.byName[b.Name] = b
	m.byHandle[b.Handle] = b
}

// Lookup returns the blob stored under a bare filename.
func (m *ImageMap) Lookup(name string) (*Blob, bool) {
	if m == nil {
		return nil, false
	}
	b, ok := m.byName[name]
	return b, ok
}

// Resolve dereferences a handle produced by Add.
func (m *ImageMap) Resolve(handle string) (*Blob, bool) {
	if m == nil {
		return nil, false
	}
	b, ok := m.byHandle[handle]
	return b, ok
}

// Len returns the number of distinct bare names.
func (m *ImageMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byName)
}

// loadImages reads every raster image of the archive into a new map.
func loadImages(a *Archive) (*ImageMap, error) {
	m := NewImageMap()
	for _, name := range a.Filter(imagePattern.MatchString) {
		b, err := a.ReadBlob(name)
		if err != nil {
			return nil, err
		}
		m.Add(b)
	}
	return m, nil
}
