package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileSource reads integration values from a YAML document:
//
//	integrations:
//	  zoom:
//	    ZOOM_ACCOUNT_ID: abc
type FileSource struct {
	Path string

	once sync.Once
	data map[string]map[string]string
	err  error
}

type fileDocument struct {
	Integrations map[string]map[string]any `yaml:"integrations"`
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: strings.TrimSpace(path)}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Fetch(_ context.Context, integration string) (map[string]string, error) {
	s.once.Do(s.load)
	if s.err != nil {
		return nil, s.err
	}
	return s.data[normalizeIntegration(integration)], nil
}

func (s *FileSource) load() {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		s.err = fmt.Errorf("read integration config %s: %w", s.Path, err)
		return
	}
	data, err := parseFileDocument(raw)
	if err != nil {
		s.err = fmt.Errorf("parse integration config %s: %w", s.Path, err)
		return
	}
	s.data = data
}

func parseFileDocument(raw []byte) (map[string]map[string]string, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(doc.Integrations))
	for name, values := range doc.Integrations {
		out[normalizeIntegration(name)] = stringifyValues(values)
	}
	return out, nil
}

func stringifyValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
