// Package library loads the starter manifests shipped with the service.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/model"
)

var ErrNotFound = errors.New("starter manifest not found")

// Starter is one validated starter manifest.
type Starter struct {
	Name        string             `json:"name"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Manifest    *manifest.Manifest `json:"manifest"`
	Warnings    []string           `json:"warnings"`
}

type starterFile struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Manifest    any    `yaml:"manifest"`
}

// Library is an immutable set of starters keyed by file name.
type Library struct {
	starters map[string]*Starter
	wpm      float64
}

// Load reads every .yaml/.yml file in dir. A missing dir yields an empty
// library; a file that fails validation fails the whole load.
func Load(dir string, v *manifest.Validator, th manifest.Thresholds) (*Library, error) {
	lib := &Library{starters: make(map[string]*Starter), wpm: th.SpeechWordsPerMin}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lib, nil
		}
		return nil, fmt.Errorf("failed to read library dir: %w", err)
	}

	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		starter, err := loadFile(filepath.Join(dir, e.Name()), name, v)
		if err != nil {
			return nil, err
		}
		if _, dup := lib.starters[name]; dup {
			return nil, fmt.Errorf("library: duplicate starter %q", name)
		}
		lib.starters[name] = starter
	}
	return lib, nil
}

func loadFile(path, name string, v *manifest.Validator) (*Starter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var f starterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.Manifest == nil {
		return nil, fmt.Errorf("%s: manifest is missing", path)
	}

	res := v.Validate(f.Manifest)
	if !res.Valid {
		return nil, fmt.Errorf("%s: invalid manifest: %s", path, strings.Join(res.Messages(), "; "))
	}

	title := f.Title
	if title == "" {
		title = name
	}
	return &Starter{
		Name:        name,
		Title:       title,
		Description: f.Description,
		Manifest:    res.Manifest,
		Warnings:    res.Warnings,
	}, nil
}

// List returns a summary of every starter, sorted by name.
func (l *Library) List() []model.LibraryEntry {
	out := make([]model.LibraryEntry, 0, len(l.starters))
	for _, s := range l.starters {
		out = append(out, model.LibraryEntry{
			Name:        s.Name,
			Title:       s.Title,
			Description: s.Description,
			VideoID:     s.Manifest.VideoID,
			Shots:       len(s.Manifest.Shots),
			Estimated:   manifest.EstimateDuration(s.Manifest, l.wpm),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (l *Library) Get(name string) (*Starter, error) {
	s, ok := l.starters[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return s, nil
}
