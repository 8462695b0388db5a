package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// localFile serves secrets from a developer file of "secret://name=value" lines. The file holds
// one value per secret regardless of version. Missing files are treated as empty.
type localFile struct {
	path string

	once   sync.Once
	values map[string]string
	err    error
}

func newLocalFile(path string) *localFile {
	return &localFile{path: strings.TrimSpace(path)}
}

func (l *localFile) lookup(ref Ref) (string, error) {
	l.once.Do(l.load)
	if l.err != nil {
		return "", l.err
	}
	if value, ok := l.values[ref.Canonical()]; ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, ref.Canonical())
}

func (l *localFile) load() {
	l.values = map[string]string{}
	if l.path == "" {
		return
	}
	file, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		l.err = fmt.Errorf("secrets: open %s: %w", l.path, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawKey, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ref, err := ParseRef(rawKey)
		if errors.Is(err, errRefScheme) && !strings.Contains(rawKey, "://") {
			// bare names are shorthand for secret://name
			ref, err = ParseRef(schemeSecret + "://" + strings.TrimSpace(rawKey))
		}
		if err != nil {
			l.err = fmt.Errorf("secrets: %s line %d: %w", l.path, lineNo, err)
			return
		}
		l.values[ref.Canonical()] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		l.err = fmt.Errorf("secrets: read %s: %w", l.path, err)
	}
}

func versionedKey(canonical, version string) string {
	return canonical + "@" + version
}
