package coco

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nvandessel/cocofix/internal/models"
)

func fixtureDataset() *models.Dataset {
	return &models.Dataset{
		Images: []models.ImageInfo{
			{ID: 1, FileName: "img1.jpg", Width: 640, Height: 480},
		},
		Annotations: []models.Annotation{
			{ID: 10, ImageID: 1, CategoryID: 1, BBox: []float64{10, 10, 50, 40}, Area: 2000},
		},
		Categories: []models.Category{
			{ID: 1, Name: "red fox"},
			{ID: 2, Name: "roe deer"},
		},
	}
}

func writeDataset(t *testing.T, path string, ds *models.Dataset) {
	t.Helper()
	data, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coco.json")
	writeDataset(t, path, fixtureDataset())

	ds, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(ds, fixtureDataset()) {
		t.Errorf("loaded dataset differs from fixture:\ngot  %+v\nwant %+v", ds, fixtureDataset())
	}
}

func TestRoundTrip_PreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.json")

	// Standard COCO keys the workflow has no field for, plus tool-specific
	// extras at every level.
	raw := `{
		"info": {"year": 2024},
		"dataset_source": "camera-trap-07",
		"images": [
			{"id": 1, "file_name": "img1.jpg", "width": 640, "height": 480,
			 "date_captured": "2024-03-01T06:12:00", "coco_url": "", "flickr_url": ""}
		],
		"annotations": [
			{"id": 10, "image_id": 1, "category_id": 1, "bbox": [10, 10, 50, 40],
			 "area": 2000, "iscrowd": 0, "attributes": {"occluded": true}}
		],
		"categories": [
			{"id": 1, "name": "red fox", "keypoints": ["nose", "tail"]}
		]
	}`
	if err := os.WriteFile(in, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := Load(in)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Rewrite something the workflow would, then save.
	ds.Annotations[0].CategoryID = 1
	if err := Save(ds, out, filepath.Join(dir, "tmp")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var saved map[string]json.RawMessage
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("parsing saved file: %v", err)
	}
	if _, ok := saved["dataset_source"]; !ok {
		t.Error("top-level dataset_source dropped on round trip")
	}

	checkKeys := func(section string, want ...string) {
		t.Helper()
		var records []map[string]json.RawMessage
		if err := json.Unmarshal(saved[section], &records); err != nil {
			t.Fatalf("parsing %s: %v", section, err)
		}
		for _, key := range want {
			if _, ok := records[0][key]; !ok {
				t.Errorf("%s key %q dropped on round trip", section, key)
			}
		}
	}
	checkKeys("images", "date_captured", "coco_url", "flickr_url")
	checkKeys("annotations", "attributes")
	checkKeys("categories", "keypoints")
}

func TestLoad_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("want error for malformed JSON")
	}
}

func TestLoad_DanglingReferences(t *testing.T) {
	dir := t.TempDir()

	t.Run("unknown image", func(t *testing.T) {
		ds := fixtureDataset()
		ds.Annotations[0].ImageID = 99
		path := filepath.Join(dir, "img.json")
		writeDataset(t, path, ds)
		if _, err := Load(path); err == nil {
			t.Error("want error for dangling image_id")
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		ds := fixtureDataset()
		ds.Annotations[0].CategoryID = 99
		path := filepath.Join(dir, "cat.json")
		writeDataset(t, path, ds)
		if _, err := Load(path); err == nil {
			t.Error("want error for dangling category_id")
		}
	})
}

func TestFindCategory_CaseInsensitiveLowestID(t *testing.T) {
	ds := fixtureDataset()
	ds.Categories = append(ds.Categories, models.Category{ID: 5, Name: "Red Fox"})

	c, ok := FindCategory(ds, "RED FOX")
	if !ok {
		t.Fatal("FindCategory: not found")
	}
	if c.ID != 1 {
		t.Errorf("ID = %d, want lowest matching id 1", c.ID)
	}
}

func TestEnsureCategory_Existing(t *testing.T) {
	ds := fixtureDataset()
	id, added := EnsureCategory(ds, "roe deer")
	if added {
		t.Error("EnsureCategory added a duplicate for an existing name")
	}
	if id != 2 {
		t.Errorf("id = %d, want 2", id)
	}
	if len(ds.Categories) != 2 {
		t.Errorf("categories grew to %d", len(ds.Categories))
	}
}

func TestEnsureCategory_AppendsNextID(t *testing.T) {
	ds := fixtureDataset()
	id, added := EnsureCategory(ds, "wild boar")
	if !added {
		t.Error("EnsureCategory did not report a new category")
	}
	if id != 3 {
		t.Errorf("id = %d, want max(existing)+1 = 3", id)
	}
	c, ok := FindCategory(ds, "wild boar")
	if !ok || c.ID != id {
		t.Errorf("appended category not findable: %+v ok=%v", c, ok)
	}
}

func TestSave_AtomicAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	tmpDir := filepath.Join(dir, "tmp")
	savePath := filepath.Join(dir, "nested", "out", "coco.json")

	ds := fixtureDataset()
	if err := Save(ds, savePath, tmpDir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(savePath)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if !reflect.DeepEqual(loaded, ds) {
		t.Error("saved dataset does not round-trip")
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("reading tmp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("tmp dir still holds %d files after Save", len(entries))
	}
}

func TestSave_Deterministic(t *testing.T) {
	dir := t.TempDir()
	tmpDir := filepath.Join(dir, "tmp")
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")

	ds := fixtureDataset()
	if err := Save(ds, a, tmpDir); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := Save(ds, b, tmpDir); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if string(da) != string(db) {
		t.Error("two saves of the same dataset produced different bytes")
	}
}
