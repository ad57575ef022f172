package epub

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("epub: invalid format")

	ErrEntryNotFound = errors.New("epub: entry not found in archive")
	ErrNoFile        = errors.New("epub: book has no archive")
	ErrNoCover       = errors.New("epub: no cover image")
	ErrEntryTooLarge = errors.New("epub: entry exceeds size limit")
)

// FormatError reports a required structural element that is missing or
// unreadable. The book cannot be loaded.
type FormatError struct {
	Part   string // archive entry or element concerned
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("epub: %s: %s", e.Part, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) true for any FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErr(part, reason string, err error) error {
	return &FormatError{Part: part, Reason: reason, Err: err}
}

// DefectKind classifies a reference that could not be resolved.
type DefectKind string

const (
	DefectImage DefectKind = "image"
	DefectLink  DefectKind = "link"
)

// Defect is a reference left unresolved during normalization. Defects are
// logged and collected but never abort a load.
type Defect struct {
	Kind  DefectKind
	Ref   string
	Block string
}

func (d Defect) String() string {
	return fmt.Sprintf("%s %q in %s", d.Kind, d.Ref, d.Block)
}
