package timeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is the on-disk YAML form of a trailer timeline.
type Script struct {
	Version  string    `yaml:"version"`
	Title    string    `yaml:"title,omitempty"`
	Segments []Segment `yaml:"segments"`
}

// WriteScript writes a script to a YAML file
func WriteScript(script *Script, path string) error {
	data, err := yaml.Marshal(script)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadScript reads a script from a YAML file and validates its segments
func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}

	if err := Validate(script.Segments); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", path, err)
	}

	return &script, nil
}

// ScriptPath creates a timestamped script filename inside dir
func ScriptPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("script_%s.yaml", timestamp))
}

// FindLatestScript finds the most recent script file in dir
func FindLatestScript(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read scripts directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var scripts []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		scripts = append(scripts, candidate{path: filepath.Join(dir, name), mod: info.ModTime()})
	}

	if len(scripts) == 0 {
		return "", fmt.Errorf("no script files found in %s", dir)
	}

	// Newest first
	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].mod.After(scripts[j].mod)
	})

	return scripts[0].path, nil
}
