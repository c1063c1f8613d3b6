package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input, prefix, suffix, ext string
		want                       string
	}{
		{"/tmp/photo.png", "", "_edited", "jpg", "photo_edited.jpg"},
		{"photo.JPG", "small_", "", "", "small_photo.jpg"},
		{"dir/a:b?.webp", "", "", "png", "a_b_.png"},
		{"noext", "", "", "", "noext.jpg"},
		{"...", "", "", "png", "image.png"},
	}

	for _, tt := range tests {
		got := GenerateOutputFilename(tt.input, tt.prefix, tt.suffix, tt.ext)
		if got != tt.want {
			t.Errorf("GenerateOutputFilename(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp", "e.gif", "f.bmp", "g.tif", "h.tiff"} {
		if !IsImageFile(name) {
			t.Errorf("Expected %s to be an image file", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.pdf"} {
		if IsImageFile(name) {
			t.Errorf("Expected %s not to be an image file", name)
		}
	}
}

func TestListAndExpandImagePaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := EnsureDir(sub); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	for _, p := range []string{
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "readme.md"),
		filepath.Join(sub, "a.jpg"),
	} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 images, got %v", files)
	}

	single := filepath.Join(dir, "b.png")
	expanded, err := ExpandImagePaths([]string{single, sub})
	if err != nil {
		t.Fatalf("ExpandImagePaths failed: %v", err)
	}
	if len(expanded) != 2 || expanded[0] != single || expanded[1] != filepath.Join(sub, "a.jpg") {
		t.Errorf("Unexpected expansion %v", expanded)
	}

	if _, err := ExpandImagePaths([]string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Error("Expected error for missing path")
	}

	if !FileExists(single) || FileExists(sub) {
		t.Error("FileExists should accept files and reject directories")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		1024:            "1.0 KB",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d): expected %q, got %q", size, want, got)
		}
	}
}
