// Package coco loads, validates, and saves COCO-format annotation files.
package coco

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nvandessel/cocofix/internal/models"
)

// MaxFileSize is the maximum COCO file size accepted (256MB). Annotation
// files beyond this are almost certainly not hand-labelled datasets.
const MaxFileSize = 256 << 20

// Load reads and parses a COCO annotation file and verifies its
// cross-references: every annotation must point at an existing image and
// category.
func Load(path string) (*models.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds maximum size (%dMB)", path, MaxFileSize>>20)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var ds models.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := Validate(&ds); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ds, nil
}

// Validate checks the dataset's internal cross-references.
func Validate(ds *models.Dataset) error {
	images := make(map[int]struct{}, len(ds.Images))
	for _, img := range ds.Images {
		images[img.ID] = struct{}{}
	}
	cats := make(map[int]struct{}, len(ds.Categories))
	for _, c := range ds.Categories {
		cats[c.ID] = struct{}{}
	}
	for _, ann := range ds.Annotations {
		if _, ok := images[ann.ImageID]; !ok {
			return fmt.Errorf("annotation %d references unknown image %d", ann.ID, ann.ImageID)
		}
		if _, ok := cats[ann.CategoryID]; !ok {
			return fmt.Errorf("annotation %d references unknown category %d", ann.ID, ann.CategoryID)
		}
	}
	return nil
}

// FindCategory returns the category whose name matches the given label,
// comparing case-insensitively after trimming. When several categories
// match, the lowest id wins, so a label differing only in case reuses the
// existing entry instead of minting a duplicate.
func FindCategory(ds *models.Dataset, label string) (*models.Category, bool) {
	want := strings.ToLower(strings.TrimSpace(label))
	var found *models.Category
	for i := range ds.Categories {
		c := &ds.Categories[i]
		if strings.ToLower(strings.TrimSpace(c.Name)) != want {
			continue
		}
		if found == nil || c.ID < found.ID {
			found = c
		}
	}
	return found, found != nil
}

// EnsureCategory returns the id of the category named label, appending a
// new entry with the next unused id when absent. The second return value
// is true when a category was added.
func EnsureCategory(ds *models.Dataset, label string) (int, bool) {
	if c, ok := FindCategory(ds, label); ok {
		return c.ID, false
	}
	next := 1
	for _, c := range ds.Categories {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	ds.Categories = append(ds.Categories, models.Category{ID: next, Name: label})
	return next, true
}

// Save serializes the dataset to savePath via a uniquely named temporary
// file in tmpDir followed by an atomic rename, so a crash mid-write never
// leaves a corrupt file at the target path. Parent directories of savePath
// are created as needed.
func Save(ds *models.Dataset, savePath, tmpDir string) error {
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("creating tmp dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}

	tmpPath := filepath.Join(tmpDir, fmt.Sprintf("coco-%s.json", uuid.NewString()))
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, savePath); err != nil {
		// Rename across filesystems can fail; fall back to copy+rename
		// inside the destination directory.
		os.Remove(tmpPath)
		alt := savePath + "." + uuid.NewString() + ".tmp"
		if werr := os.WriteFile(alt, data, 0o644); werr != nil {
			return fmt.Errorf("writing %s: %w", savePath, werr)
		}
		if rerr := os.Rename(alt, savePath); rerr != nil {
			os.Remove(alt)
			return fmt.Errorf("replacing %s: %w", savePath, rerr)
		}
	}
	return nil
}
