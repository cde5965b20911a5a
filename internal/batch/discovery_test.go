package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles([]string{}, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_SingleFiles(t *testing.T) {
	tempDir := t.TempDir()
	pngFile := filepath.Join(tempDir, "test.png")
	txtFile := filepath.Join(tempDir, "test.txt")
	jpgFile := filepath.Join(tempDir, "test.jpg")
	touch(t, pngFile, txtFile, jpgFile)

	files, err := discoverImageFiles([]string{jpgFile, txtFile, pngFile}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{jpgFile, pngFile}, files, "argument order is kept, unsupported files dropped")
}

func TestDiscoverImageFiles_DirectoryIsLexical(t *testing.T) {
	tempDir := t.TempDir()
	f2 := filepath.Join(tempDir, "frame_002.png")
	f10 := filepath.Join(tempDir, "frame_010.png")
	f1 := filepath.Join(tempDir, "frame_001.png")
	touch(t, f2, f10, f1, filepath.Join(tempDir, "notes.txt"))

	files, err := discoverImageFiles([]string{tempDir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{f1, f2, f10}, files)
}

func TestDiscoverImageFiles_Recursive(t *testing.T) {
	tempDir := t.TempDir()
	rootPng := filepath.Join(tempDir, "root.png")
	subPng := filepath.Join(tempDir, "subdir", "sub.png")
	touch(t, rootPng, subPng, filepath.Join(tempDir, "subdir", "sub.txt"))

	files, err := discoverImageFiles([]string{tempDir}, true, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{rootPng, subPng}, files)

	files, err = discoverImageFiles([]string{tempDir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{rootPng}, files)
}

func TestDiscoverImageFiles_IncludeExcludePatterns(t *testing.T) {
	tempDir := t.TempDir()
	test1 := filepath.Join(tempDir, "test1.png")
	test2 := filepath.Join(tempDir, "test2.jpg")
	excluded := filepath.Join(tempDir, "exclude.png")
	touch(t, test1, test2, excluded)

	files, err := discoverImageFiles([]string{tempDir}, false, []string{"*.png"}, []string{"*exclude*"})
	require.NoError(t, err)
	assert.Equal(t, []string{test1}, files)
}

func TestDiscoverImageFiles_NonExistent(t *testing.T) {
	files, err := discoverImageFiles([]string{"/nonexistent/directory"}, false, nil, nil)
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestShouldIncludeFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		include []string
		exclude []string
		want    bool
	}{
		{"supported image", "a/photo.jpg", nil, nil, true},
		{"upper case extension", "a/PHOTO.PNG", nil, nil, true},
		{"unsupported extension", "a/doc.pdf", nil, nil, false},
		{"include pattern matches", "a/qr_1.png", []string{"qr_*"}, nil, true},
		{"include pattern misses", "a/img_1.png", []string{"qr_*"}, nil, false},
		{"exclude wins", "a/qr_skip.png", []string{"qr_*"}, []string{"*skip*"}, false},
		{"include cannot add unsupported", "a/qr_1.txt", []string{"qr_*"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldIncludeFile(tt.path, tt.include, tt.exclude))
		})
	}
}

func TestMatchesAnyPattern(t *testing.T) {
	patterns := []string{"*.png", "special.*"}

	assert.True(t, matchesAnyPattern("/x/test.png", patterns))
	assert.True(t, matchesAnyPattern("special.gif", patterns))
	assert.False(t, matchesAnyPattern("test.PNG", patterns), "patterns are case sensitive")
	assert.False(t, matchesAnyPattern("test.png", nil))
}
