package knowledge

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogDefaults(t *testing.T) {
	assert := assert.New(t)

	c := NewCatalog("", slog.Default())
	tools := c.Tools()
	assert.Len(tools, 6)
	assert.Equal("3D Printers (Bambu Lab X1C)", tools[0].Name)

	cats := c.Categories()
	assert.Equal([]string{"Computing", "Electronics", "Fabrication", "Research", "Study Space"}, cats)
}

func TestCatalogFileRoundTrip(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "knowledge_base.json")

	// first boot persists the default catalog
	c := NewCatalog(path, slog.Default())
	_, err := os.Stat(path)
	require.NoError(t, err)

	custom := []Tool{{ID: 1, Name: "Wind Tunnel", Category: "Research"}}
	require.NoError(t, c.Replace(custom))

	c2 := NewCatalog(path, slog.Default())
	require.Len(t, c2.Tools(), 1)
	assert.Equal("Wind Tunnel", c2.Tools()[0].Name)
}

func TestCatalogMalformedFileKeepsDefaults(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "knowledge_base.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0664))

	c := NewCatalog(path, slog.Default())
	assert.Len(c.Tools(), 6)
}

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"laser", "cutter"}, TokenizeText("Laser Cutter!"))
	assert.Equal([]string{"3d", "printing"}, TokenizeText("3D-printing"))
	// accents fold away
	assert.Equal([]string{"resume", "printing"}, TokenizeText("Résumé printing"))
	assert.Empty(TokenizeText("   ??? "))
}
