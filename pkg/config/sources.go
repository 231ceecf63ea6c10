package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Source describes one named data source from the sources file.
type Source struct {
	Name        string            `yaml:"-" json:"name"`
	Type        string            `yaml:"type" json:"type"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Config      map[string]string `yaml:"config" json:"-"`
}

func (s Source) Param(key, def string) string {
	if v, ok := s.Config[key]; ok && v != "" {
		return v
	}
	return def
}

func (s Source) IntParam(key string, def int) (int, error) {
	v, ok := s.Config[key]
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("source %s: invalid %s=%q: %w", s.Name, key, v, err)
	}
	return i, nil
}

type sourcesFile struct {
	Sources map[string]Source `yaml:"sources"`
}

var envRefRe = regexp.MustCompile(`\$\{([^}{]+)\}`)

// ExpandEnv replaces ${VAR} references. Unknown variables are left as-is so a
// missing secret shows up verbatim in connection errors.
func ExpandEnv(s string, lookup LookupFunc) string {
	return envRefRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := lookup(name); ok {
			return v
		}
		return m
	})
}

func LoadSources(path string, lookup LookupFunc) (map[string]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(data, lookup)
}

func ParseSources(data []byte, lookup LookupFunc) (map[string]Source, error) {
	var f sourcesFile
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data), lookup)), &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	for name, src := range f.Sources {
		src.Name = name
		if src.Type == "" {
			return nil, fmt.Errorf("source %s: type is required", name)
		}
		f.Sources[name] = src
	}
	return f.Sources, nil
}

// SortedSources returns sources ordered by name.
func SortedSources(m map[string]Source) []Source {
	out := make([]Source, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
