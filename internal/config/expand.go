package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvandessel/cocofix/internal/errs"
)

// FilePair is one resolved (input, output) COCO file mapping.
type FilePair struct {
	CocoPath string `json:"coco_path" yaml:"coco_path"`
	SavePath string `json:"save_path" yaml:"save_path"`
}

// ExpandPairs normalizes coco_paths and save_paths into matched file
// pairs, applying directory expansion before the workflow runs:
//
//   - a coco_paths directory expands to its *.json files sorted by
//     filename, for determinism;
//   - a save_paths directory maps each input to <dir>/<input base name>;
//   - two explicit lists pair by index and must be the same length.
//
// Any inconsistency is a configuration error reported before a single
// file is processed.
func (c *Config) ExpandPairs() ([]FilePair, error) {
	inputs, err := expandInputs(c.CocoPaths)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errs.Configf("coco_paths", "no .json files found")
	}

	saveDir, isDir := savePathsDirectory(c.SavePaths)
	if isDir {
		pairs := make([]FilePair, len(inputs))
		seen := make(map[string]string, len(inputs))
		for i, in := range inputs {
			base := filepath.Base(in)
			if prev, dup := seen[base]; dup {
				return nil, errs.Configf("coco_paths",
					"%s and %s would both save to %s", prev, in, filepath.Join(saveDir, base))
			}
			seen[base] = in
			pairs[i] = FilePair{
				CocoPath: in,
				SavePath: filepath.Join(saveDir, base),
			}
		}
		return pairs, nil
	}

	if len(c.SavePaths) != len(inputs) {
		return nil, errs.Configf("save_paths",
			"count mismatch: %d coco files but %d save paths", len(inputs), len(c.SavePaths))
	}
	pairs := make([]FilePair, len(inputs))
	for i, in := range inputs {
		pairs[i] = FilePair{CocoPath: in, SavePath: c.SavePaths[i]}
	}
	return pairs, nil
}

// expandInputs resolves the coco_paths value into a sorted list of
// existing .json files.
func expandInputs(paths PathList) ([]string, error) {
	if len(paths) == 1 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			entries, err := os.ReadDir(paths[0])
			if err != nil {
				return nil, errs.Configf("coco_paths", "reading directory: %v", err)
			}
			var files []string
			for _, e := range entries {
				if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
					continue
				}
				files = append(files, filepath.Join(paths[0], e.Name()))
			}
			sort.Strings(files)
			return files, nil
		}
	}

	files := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errs.Configf("coco_paths", "%v", err)
		}
		if info.IsDir() {
			return nil, errs.Configf("coco_paths", "%s is a directory; a directory must be the only entry", p)
		}
		files = append(files, p)
	}
	return files, nil
}

// savePathsDirectory reports whether save_paths designates a directory
// target. A single entry that either exists as a directory or does not
// exist yet and has no .json extension is treated as a directory.
func savePathsDirectory(paths PathList) (string, bool) {
	if len(paths) != 1 {
		return "", false
	}
	p := paths[0]
	if info, err := os.Stat(p); err == nil {
		return p, info.IsDir()
	}
	if filepath.Ext(p) == ".json" {
		return "", false
	}
	return p, true
}

// String renders the pair for display in validate output.
func (p FilePair) String() string {
	return fmt.Sprintf("%s -> %s", p.CocoPath, p.SavePath)
}
