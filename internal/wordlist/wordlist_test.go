package wordlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/likexian/gokit/assert"
)

func TestDefaultIsCopied(t *testing.T) {
	a := Default()
	a[0] = "mutated"
	b := Default()
	assert.Equal(t, b[0], "admin")
	assert.Equal(t, len(b), 23)
}

func TestLoadEmptyPathFallsBack(t *testing.T) {
	words, err := Load("")
	assert.Nil(t, err)
	assert.Equal(t, words, Default())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "words.txt")
	content := "# common panels\nadmin\n\n  login  \n/secret\nadmin\nbackup\n"
	assert.Nil(t, os.WriteFile(file, []byte(content), 0o644))

	words, err := Load(file)
	assert.Nil(t, err)
	assert.Equal(t, words, []string{"admin", "login", "secret", "backup"})
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "empty.txt")
	assert.Nil(t, os.WriteFile(file, []byte("# nothing here\n\n"), 0o644))

	_, err := Load(file)
	assert.Equal(t, err, ErrEmptyWordlist)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.NotNil(t, err)
}

func TestExpandExtensions(t *testing.T) {
	got := ExpandExtensions([]string{"admin", "backup.zip"}, []string{"php", ".bak"})
	assert.Equal(t, got, []string{"admin", "admin.php", "admin.bak", "backup.zip"})
}

func TestExpandExtensionsNoExts(t *testing.T) {
	words := []string{"admin", "login"}
	assert.Equal(t, ExpandExtensions(words, nil), words)
}
