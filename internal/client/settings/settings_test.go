package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, s.Theme())
	assert.Equal(t, DefaultGatewayURL, s.GatewayURL())
	assert.Equal(t, 3*time.Second, s.SlideshowInterval())
	assert.Empty(t, s.Token())
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.SetTheme(ThemeDark))
	require.NoError(t, s.SetToken("jwt"))
	require.NoError(t, s.SetSlideshowInterval(time.Minute))
	require.NoError(t, s.SetGatewayURL("https://keepsake.example"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Values{
		Theme:             ThemeDark,
		GatewayURL:        "https://keepsake.example",
		Token:             "jwt",
		SlideshowInterval: 30 * time.Second,
	}, reloaded.Values())
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetTheme("neon"), ErrUnknownTheme)
	assert.Equal(t, ThemeSystem, s.Theme())
}

func TestLoadNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: neon\nslideshow_interval: 100ms\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, s.Theme())
	assert.Equal(t, time.Second, s.SlideshowInterval())
	assert.Equal(t, DefaultGatewayURL, s.GatewayURL())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
