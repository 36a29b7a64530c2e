// internal/catalog/catalog_test.go
package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)

	basic, ok := cat.Get("guardian_basic")
	require.True(t, ok)
	assert.Equal(t, 29.99, basic.Price)
	assert.Equal(t, 5, basic.DownloadLimit)

	enterprise, ok := cat.Get("guardian_enterprise")
	require.True(t, ok)
	assert.Equal(t, -1, enterprise.DownloadLimit)

	assert.Len(t, cat.List(), 3)
}

func TestLoadFromFile(t *testing.T) {
	data := `[
		{"id": "widget", "name": "Widget", "price": 9.99, "currency": "USD", "active": true},
		{"id": "gadget", "name": "Gadget", "price": 19.99, "currency": "USD", "active": false}
	]`
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)

	widget, ok := cat.Get("widget")
	require.True(t, ok)
	assert.Equal(t, 9.99, widget.Price)

	// Inactive products are invisible
	_, ok = cat.Get("gadget")
	assert.False(t, ok)
	assert.Len(t, cat.List(), 1)
}

func TestLoadRejectsDuplicates(t *testing.T) {
	data := `[
		{"id": "widget", "name": "A", "price": 1, "currency": "USD", "active": true},
		{"id": "widget", "name": "B", "price": 2, "currency": "USD", "active": true}
	]`
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPublicViewOmitsFileKey(t *testing.T) {
	p := Product{
		ID:    "widget",
		Name:  "Widget",
		Price: 9.99,
		File:  ProductFile{Key: "releases/widget.zip", Size: 42},
	}

	view := p.PublicView()
	assert.NotContains(t, view, "file")
	assert.Equal(t, int64(42), view["file_size"])
}
