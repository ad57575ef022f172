package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanying/epub-reader/internal/validation"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.False(t, s.LightTheme)
	assert.True(t, s.Paginated)
	assert.Equal(t, 25, s.FontSize)
	assert.Empty(t, s.UUID)
	assert.Empty(t, s.ServerAddress)
	assert.NoError(t, s.Validate())
	assert.False(t, s.SyncConfigured())
}

func TestSet(t *testing.T) {
	s := Default()
	require.NoError(t, s.Set("font_size", "32"))
	require.NoError(t, s.Set("light_theme", "true"))
	require.NoError(t, s.Set("paginated", "false"))
	require.NoError(t, s.Set("server_address", "https://sync.example.com/"))
	require.NoError(t, s.Set("uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"))

	assert.Equal(t, 32, s.FontSize)
	assert.True(t, s.LightTheme)
	assert.False(t, s.Paginated)
	assert.Equal(t, "https://sync.example.com", s.ServerAddress)
	assert.True(t, s.SyncConfigured())

	got, err := s.Get("font_size")
	require.NoError(t, err)
	assert.Equal(t, "32", got)
}

func TestSet_RejectsInvalid(t *testing.T) {
	s := Default()

	err := s.Set("font_size", "200")
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "font_size")

	assert.Error(t, s.Set("font_size", "big"))
	assert.Error(t, s.Set("uuid", "not-a-uuid"))
	assert.Error(t, s.Set("server_address", "nowhere"))
	assert.Error(t, s.Set("color", "red"))

	assert.Equal(t, Default(), s, "failed Set must not change settings")
}

func TestParseAssignment(t *testing.T) {
	k, v, err := ParseAssignment("font_size=30")
	require.NoError(t, err)
	assert.Equal(t, "font_size", k)
	assert.Equal(t, "30", v)

	_, _, err = ParseAssignment("font_size")
	assert.Error(t, err)
}
