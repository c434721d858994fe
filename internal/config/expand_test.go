package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/cocofix/internal/errs"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func baseConfig(dir string) *Config {
	cfg := &Config{
		ModelName:      "/models/m.gguf",
		AllowedClasses: []string{"red fox"},
		ImagesPath:     dir,
	}
	cfg.applyDefaults()
	return cfg
}

func TestExpandPairs_ListsByIndex(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	touch(t, a)
	touch(t, b)

	cfg := baseConfig(dir)
	cfg.CocoPaths = PathList{a, b}
	cfg.SavePaths = PathList{"out/a.json", "out/b.json"}

	pairs, err := cfg.ExpandPairs()
	if err != nil {
		t.Fatalf("ExpandPairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].CocoPath != a || pairs[0].SavePath != "out/a.json" {
		t.Errorf("pairs[0] = %+v", pairs[0])
	}
	if pairs[1].CocoPath != b || pairs[1].SavePath != "out/b.json" {
		t.Errorf("pairs[1] = %+v", pairs[1])
	}
}

func TestExpandPairs_LengthMismatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	touch(t, a)
	touch(t, b)

	cfg := baseConfig(dir)
	cfg.CocoPaths = PathList{a, b}
	cfg.SavePaths = PathList{"out/a.json"}

	_, err := cfg.ExpandPairs()
	if err == nil {
		t.Fatal("want ConfigError for length mismatch")
	}
	var ce *errs.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("error %T is not a ConfigError", err)
	}
}

func TestExpandPairs_DirectoryInputSorted(t *testing.T) {
	inDir := filepath.Join(t.TempDir(), "in")
	// Created out of order; expansion must sort by filename.
	touch(t, filepath.Join(inDir, "b.json"))
	touch(t, filepath.Join(inDir, "a.json"))
	touch(t, filepath.Join(inDir, "c.json"))
	touch(t, filepath.Join(inDir, "notes.txt"))

	cfg := baseConfig(inDir)
	cfg.CocoPaths = PathList{inDir}
	cfg.SavePaths = PathList{filepath.Join(inDir, "..", "out")}

	pairs, err := cfg.ExpandPairs()
	if err != nil {
		t.Fatalf("ExpandPairs: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("got %d pairs, want 3 (txt file must be skipped)", len(pairs))
	}
	want := []string{"a.json", "b.json", "c.json"}
	for i, p := range pairs {
		if filepath.Base(p.CocoPath) != want[i] {
			t.Errorf("pairs[%d].CocoPath = %s, want %s", i, p.CocoPath, want[i])
		}
		// Directory save target maps by filename stem.
		if filepath.Base(p.SavePath) != want[i] {
			t.Errorf("pairs[%d].SavePath = %s, want base %s", i, p.SavePath, want[i])
		}
	}
}

func TestExpandPairs_SaveDirectoryForList(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "x", "train.json")
	touch(t, a)

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg := baseConfig(dir)
	cfg.CocoPaths = PathList{a}
	cfg.SavePaths = PathList{outDir}

	pairs, err := cfg.ExpandPairs()
	if err != nil {
		t.Fatalf("ExpandPairs: %v", err)
	}
	wantSave := filepath.Join(outDir, "train.json")
	if pairs[0].SavePath != wantSave {
		t.Errorf("SavePath = %s, want %s", pairs[0].SavePath, wantSave)
	}
}

func TestExpandPairs_DuplicateBasenameForSaveDirectory(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "x", "train.json")
	b := filepath.Join(dir, "y", "train.json")
	touch(t, a)
	touch(t, b)

	cfg := baseConfig(dir)
	cfg.CocoPaths = PathList{a, b}
	cfg.SavePaths = PathList{filepath.Join(dir, "out")}

	_, err := cfg.ExpandPairs()
	if err == nil {
		t.Fatal("want ConfigError when two inputs share a basename")
	}
	var ce *errs.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("error %T is not a ConfigError", err)
	}
}

func TestExpandPairs_MissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.CocoPaths = PathList{filepath.Join(dir, "missing.json")}
	cfg.SavePaths = PathList{"out/missing.json"}

	if _, err := cfg.ExpandPairs(); err == nil {
		t.Error("want error for missing input file")
	}
}

func TestExpandPairs_EmptyDirectory(t *testing.T) {
	inDir := filepath.Join(t.TempDir(), "empty")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := baseConfig(inDir)
	cfg.CocoPaths = PathList{inDir}
	cfg.SavePaths = PathList{"out"}

	if _, err := cfg.ExpandPairs(); err == nil {
		t.Error("want error for directory without .json files")
	}
}
