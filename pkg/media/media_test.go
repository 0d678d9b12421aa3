package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal valid PNG header followed by padding
var pngData = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)

func TestFetchSniffsMIME(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// deliberately wrong content type; sniffing must win
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngData)
	}))
	defer server.Close()

	fetched, err := NewFetcher(1 << 20).Fetch(context.Background(), server.URL+"/photo.png?sig=abc")
	require.NoError(t, err)

	assert.Equal(t, "image/png", fetched.MIME)
	assert.Equal(t, "photo.png", fetched.Filename)
	assert.Equal(t, pngData, fetched.Data)
}

func TestFetchRejectsOversize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	_, err := NewFetcher(1024).Fetch(context.Background(), server.URL+"/big.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size limit")
}

func TestFetchRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher(0).Fetch(context.Background(), server.URL+"/gone")
	assert.Error(t, err)
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "doc.pdf", filenameFromURL("https://cdn.example.com/files/doc.pdf?token=x"))
	assert.Empty(t, filenameFromURL("https://cdn.example.com/files/"))
	assert.Empty(t, filenameFromURL("https://cdn.example.com/opaque-id"))
}

func TestStoreSaveKeepsExtension(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.Save(&Fetched{Data: pngData, MIME: "image/png", Filename: "photo.PNG"}, Inbound)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.Contains(t, path, string(os.PathSeparator)+"inbound"+string(os.PathSeparator))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngData, data)
}

func TestStoreSaveDerivesExtensionFromMIME(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.Save(&Fetched{Data: pngData, MIME: "image/png"}, Outbound)
	require.NoError(t, err)

	assert.Equal(t, ".png", filepath.Ext(path))
	assert.Contains(t, path, string(os.PathSeparator)+"outbound"+string(os.PathSeparator))
}

func TestStoreSaveUniqueNames(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.Save(&Fetched{Data: []byte("a"), Filename: "x.txt"}, Inbound)
	require.NoError(t, err)
	second, err := store.Save(&Fetched{Data: []byte("b"), Filename: "x.txt"}, Inbound)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
