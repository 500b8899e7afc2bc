// Package wordlist supplies the path candidates for the discovery phase:
// an embedded default list of commonly exposed files and directories, plus
// a loader for user-supplied files.
package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyWordlist aborts the path phase before any job is built: a wordlist
// that loads to zero entries cannot drive a scan.
var ErrEmptyWordlist = errors.New("wordlist has no entries")

// defaultWords is the built-in candidate set, covering admin panels, VCS and
// config leftovers, backup artifacts and common server endpoints.
var defaultWords = []string{
	"admin",
	"dashboard",
	"login",
	"wp-admin",
	"phpmyadmin",
	".git",
	".env",
	"backup",
	"api",
	"config",
	"uploads",
	"administrator",
	"mysql",
	"test",
	"hidden",
	"cgi-bin",
	"phpinfo.php",
	"robots.txt",
	".htaccess",
	"backup.zip",
	"wp-login.php",
	"administrator/index.php",
	"server-status",
}

// Default returns a copy of the embedded wordlist.
func Default() []string {
	out := make([]string, len(defaultWords))
	copy(out, defaultWords)
	return out
}

// Load reads a wordlist file: one candidate per line, blank lines and
// #-comments skipped, duplicates dropped while keeping first-seen order.
// An empty path falls back to the embedded default.
func Load(path string) ([]string, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	seen := map[string]struct{}{}
	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyWordlist
	}
	return words, nil
}

// ExpandExtensions appends one variant per extension to every word that does
// not already carry one. Extensions may be given with or without the dot.
// Base words stay in the list ahead of their variants.
func ExpandExtensions(words, exts []string) []string {
	if len(exts) == 0 {
		return words
	}
	out := make([]string, 0, len(words)*(len(exts)+1))
	seen := map[string]struct{}{}
	add := func(w string) {
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	for _, w := range words {
		add(w)
		if strings.Contains(w, ".") {
			continue
		}
		for _, ext := range exts {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			add(w + ext)
		}
	}
	return out
}
