package tokenizer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Asset file names looked up in the assets directory.
const (
	DictionaryFile  = "dict-zh.txt"
	StopWordsEnFile = "stop-words-en.txt"
	StopWordsZhFile = "stop-words-zh.txt"
)

// Assets holds the externally supplied tokenizer resources. Any field may
// be empty; the tokenizer degrades instead of failing.
type Assets struct {
	// Dictionary is a CJK word list, one "word frequency [pos]" per line.
	Dictionary []byte
	// StopWordsEn replaces the built-in English list when non-empty.
	StopWordsEn []string
	StopWordsZh []string
}

// LoadAssets reads whatever assets exist in dir. Missing files are not an
// error; unreadable ones are reported together after everything else loaded.
func LoadAssets(dir string) (Assets, error) {
	var (
		a    Assets
		errs []error
	)
	if dir == "" {
		return a, nil
	}

	read := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("read %s: %w", name, err))
			}
			return nil
		}
		return data
	}

	a.Dictionary = read(DictionaryFile)
	a.StopWordsEn = ParseWordList(read(StopWordsEnFile))
	a.StopWordsZh = ParseWordList(read(StopWordsZhFile))

	return a, errors.Join(errs...)
}

// ParseWordList splits line-delimited text into trimmed, non-empty words.
func ParseWordList(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var words []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	return words
}
