package epub

import (
	"errors"
	"strings"
	"testing"
)

func TestOpenArchive(t *testing.T) {
	a, err := OpenArchive(sampleEPUB(t))
	if err != nil {
		t.Fatalf("OpenArchive() failed: %v", err)
	}
	if !a.Has("META-INF/container.xml") {
		t.Error("container.xml should be present")
	}
	if !a.Has("./OEBPS/content.opf") {
		t.Error("./ prefix should be normalized")
	}
}

func TestOpenArchive_NotZip(t *testing.T) {
	_, err := OpenArchive([]byte("not a zip"))
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("error = %v, want ErrFormat", err)
	}
}

func TestArchive_ReadText(t *testing.T) {
	a, err := OpenArchive(sampleEPUB(t))
	if err != nil {
		t.Fatalf("OpenArchive() failed: %v", err)
	}
	text, err := a.ReadText("OEBPS/nav.xhtml")
	if err != nil {
		t.Fatalf("ReadText() failed: %v", err)
	}
	if !strings.Contains(text, "第二章") {
		t.Errorf("ReadText() = %q, want nav content", text)
	}
}

func TestArchive_ReadFile_NotFound(t *testing.T) {
	a, err := OpenArchive(sampleEPUB(t))
	if err != nil {
		t.Fatalf("OpenArchive() failed: %v", err)
	}
	if _, err := a.ReadFile("OEBPS/missing.xhtml"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("error = %v, want ErrEntryNotFound", err)
	}
}

func TestArchive_ReadBlob_ContentType(t *testing.T) {
	a, err := OpenArchive(buildEPUB(t, []fixtureFile{
		{Name: "img/a.JPEG", Body: []byte{1}},
		{Name: "img/b.jpg", Body: []byte{2}},
		{Name: "img/c.png", Body: []byte{3}},
	}))
	if err != nil {
		t.Fatalf("OpenArchive() failed: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"img/a.JPEG", "image/jpeg"},
		{"img/b.jpg", "image/jpeg"},
		{"img/c.png", "image/png"},
	}
	for _, tt := range tests {
		b, err := a.ReadBlob(tt.name)
		if err != nil {
			t.Fatalf("ReadBlob(%q) failed: %v", tt.name, err)
		}
		if b.ContentType != tt.want {
			t.Errorf("ReadBlob(%q).ContentType = %q, want %q", tt.name, b.ContentType, tt.want)
		}
		if b.Name != baseName(tt.name) {
			t.Errorf("ReadBlob(%q).Name = %q", tt.name, b.Name)
		}
	}
}

func TestArchive_Filter(t *testing.T) {
	a, err := OpenArchive(sampleEPUB(t))
	if err != nil {
		t.Fatalf("OpenArchive() failed: %v", err)
	}
	got := a.Filter(imagePattern.MatchString)
	if len(got) != 1 || got[0] != "OEBPS/images/cover.jpg" {
		t.Errorf("Filter() = %v, want [OEBPS/images/cover.jpg]", got)
	}
}

func TestLazy_CachesFirstSuccess(t *testing.T) {
	calls := 0
	fail := true
	l := NewLazy(func() (int, error) {
		calls++
		if fail {
			return 0, errors.New("boom")
		}
		return 42, nil
	})

	if _, err := l.Get(); err == nil {
		t.Fatal("first Get() should fail")
	}
	fail = false
	for i := 0; i < 3; i++ {
		v, err := l.Get()
		if err != nil || v != 42 {
			t.Fatalf("Get() = %d, %v; want 42", v, err)
		}
	}
	if calls != 2 {
		t.Errorf("loader calls = %d, want 2", calls)
	}

	l.Reset()
	if l.Loaded() {
		t.Error("Loaded() after Reset() = true")
	}
}

func TestPathHelpers(t *testing.T) {
	if got := dirPrefix("OEBPS/content.opf"); got != "OEBPS/" {
		t.Errorf("dirPrefix = %q", got)
	}
	if got := dirPrefix("content.opf"); got != "" {
		t.Errorf("dirPrefix = %q, want empty", got)
	}
	if got := stem("p-cover.xhtml"); got != "p-cover" {
		t.Errorf("stem = %q", got)
	}
}
