package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// loadFile reads a replay export. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func loadFile(path string) (*domain.ReplayData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(raw)
	default:
		return parseJSON(raw)
	}
}

func parseJSON(raw []byte) (*domain.ReplayData, error) {
	var data domain.ReplayData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse replay json: %w", err)
	}
	return &data, nil
}

// parseYAML decodes through JSON so step payloads keep their raw form.
func parseYAML(raw []byte) (*domain.ReplayData, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse replay yaml: %w", err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert replay yaml: %w", err)
	}
	return parseJSON(converted)
}
