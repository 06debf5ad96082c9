// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type (
	// File is one entry of a fixture archive.
	File struct {
		Name string
		Body string
		Mode int64
	}

	// FileServer serves fixture files over HTTP and counts requests.
	FileServer struct {
		*httptest.Server
		hits atomic.Int64
	}
)

// fixtureTime is the modification time stamped on every archive entry.
var fixtureTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// TarGz returns a gzip-compressed tar archive holding files. Parent
// directories are added automatically; Mode defaults to 0644.
func TarGz(t testing.TB, files []File) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	seen := map[string]bool{}
	for _, f := range files {
		for _, dir := range parentDirs(f.Name) {
			if seen[dir] {
				continue
			}
			seen[dir] = true
			if err := tw.WriteHeader(&tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: fixtureTime}); err != nil {
				t.Fatalf("writing tar dir %s: %v", dir, err)
			}
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{Name: f.Name, Typeflag: tar.TypeReg, Mode: mode, Size: int64(len(f.Body)), ModTime: fixtureTime}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", f.Name, err)
		}
		if _, err := tw.Write([]byte(f.Body)); err != nil {
			t.Fatalf("writing tar body %s: %v", f.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a zip archive holding files.
func Zip(t testing.TB, files []File) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: fixtureTime}
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		hdr.SetMode(os.FileMode(mode) & os.ModePerm)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", f.Name, err)
		}
		if _, err := w.Write([]byte(f.Body)); err != nil {
			t.Fatalf("writing zip entry %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

// ServeFiles starts an HTTP server answering GET /<name> with files[name] and
// 404 for anything else. The server is closed when the test ends.
func ServeFiles(t testing.TB, files map[string][]byte) *FileServer {
	t.Helper()

	fs := &FileServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

// Hits returns the number of requests served so far.
func (fs *FileServer) Hits() int64 {
	return fs.hits.Load()
}

func parentDirs(name string) []string {
	parts := strings.Split(name, "/")
	dirs := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/"))
	}
	return dirs
}
