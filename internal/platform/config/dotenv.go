package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvironmentValues applies the dotenv file and returns the resulting process environment.
// main uses it to configure the secret fetcher before Load runs.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	l := newLoader(opts)
	if err := applyDotEnv(l.envFile); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok && key != "" {
			values[key] = value
		}
	}
	return values, nil
}

// applyDotEnv sets every variable from path that the process does not already define.
func applyDotEnv(path string) error {
	entries, err := readDotEnv(path)
	if err != nil {
		return err
	}
	for key, value := range entries {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	return nil
}

// readDotEnv parses KEY=value lines, tolerating "export" prefixes, comments and quoted values.
func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		entries[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return entries, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		if first, last := value[0], value[len(value)-1]; first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
