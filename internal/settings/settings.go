// Package settings holds the reader preferences.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yuanying/epub-reader/internal/validation"
)

const DefaultFontSize = 25

// Settings are the user preferences persisted next to the collection.
type Settings struct {
	LightTheme    bool   `json:"light_theme"`
	Paginated     bool   `json:"paginated"`
	FontSize      int    `json:"font_size" validate:"gte=8,lte=96"`
	UUID          string `json:"uuid,omitempty" validate:"omitempty,uuid"`
	ServerAddress string `json:"server_address,omitempty" validate:"omitempty,url"`
}

// Default returns the preferences of a fresh installation.
func Default() Settings {
	return Settings{Paginated: true, FontSize: DefaultFontSize}
}

var validator = validation.New()

// Validate reports invalid fields as a *validation.Error.
func (s Settings) Validate() error {
	return validator.Validate(s)
}

// SyncConfigured reports whether both the sync server and the user id
// are set.
func (s Settings) SyncConfigured() bool {
	return s.UUID != "" && s.ServerAddress != ""
}

// Keys lists the names accepted by Set in display order.
var Keys = []string{"light_theme", "paginated", "font_size", "uuid", "server_address"}

// Get returns the string form of a setting.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case "light_theme":
		return strconv.FormatBool(s.LightTheme), nil
	case "paginated":
		return strconv.FormatBool(s.Paginated), nil
	case "font_size":
		return strconv.Itoa(s.FontSize), nil
	case "uuid":
		return s.UUID, nil
	case "server_address":
		return s.ServerAddress, nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

// Set parses value into the setting named key and validates the result.
// s is unchanged on error.
func (s *Settings) Set(key, value string) error {
	next := *s
	var err error
	switch key {
	case "light_theme":
		next.LightTheme, err = strconv.ParseBool(value)
	case "paginated":
		next.Paginated, err = strconv.ParseBool(value)
	case "font_size":
		next.FontSize, err = strconv.Atoi(value)
	case "uuid":
		next.UUID = strings.TrimSpace(value)
	case "server_address":
		next.ServerAddress = strings.TrimRight(strings.TrimSpace(value), "/")
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// ParseAssignment splits a "key=value" argument.
func ParseAssignment(arg string) (key, value string, err error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", arg)
	}
	return key, value, nil
}
