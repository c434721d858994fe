// Package models defines the COCO dataset types and correction outcome
// records shared across the workflow, cache, and CLI layers.
package models

import "encoding/json"

// Dataset is a COCO-format annotation set. Keys the correction workflow
// never touches are carried as raw JSON, at the top level and inside every
// record, so they survive a load/save round trip unmodified.
type Dataset struct {
	Info        json.RawMessage `json:"info,omitempty"`
	Licenses    json.RawMessage `json:"licenses,omitempty"`
	Images      []ImageInfo     `json:"images"`
	Annotations []Annotation    `json:"annotations"`
	Categories  []Category      `json:"categories"`

	extra extraFields
}

// ImageInfo is a COCO image record.
type ImageInfo struct {
	ID       int             `json:"id"`
	FileName string          `json:"file_name"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	License  json.RawMessage `json:"license,omitempty"`

	extra extraFields
}

// Annotation is a COCO instance record. Correction rewrites CategoryID and
// nothing else.
type Annotation struct {
	ID           int             `json:"id"`
	ImageID      int             `json:"image_id"`
	CategoryID   int             `json:"category_id"`
	BBox         []float64       `json:"bbox"`
	Area         float64         `json:"area"`
	Segmentation json.RawMessage `json:"segmentation,omitempty"`
	IsCrowd      int             `json:"iscrowd"`
	Score        *float64        `json:"score,omitempty"`

	extra extraFields
}

// Category maps a COCO category id to its name.
type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`

	extra extraFields
}

// extraFields holds JSON keys a record has no struct field for, such as
// date_captured, coco_url, or tool-specific attributes.
type extraFields map[string]json.RawMessage

// captureExtra decodes data into v (an alias type, so decoding does not
// recurse) and collects every key not named in known.
func captureExtra(data []byte, v any, known ...string) (extraFields, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return extraFields(raw), nil
}

// merge re-encodes v and splices the preserved keys back in. Keys come out
// in sorted order, so repeated saves stay byte-identical.
func (e extraFields) merge(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(e) == 0 {
		return data, nil
	}
	m := make(map[string]json.RawMessage, len(e)+8)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, val := range e {
		if _, ok := m[k]; !ok {
			m[k] = val
		}
	}
	return json.Marshal(m)
}

// The known-key lists below must track the json tags on each struct; a key
// listed here is owned by the struct field, everything else is preserved
// verbatim.

func (d *Dataset) UnmarshalJSON(data []byte) error {
	type plain Dataset
	extra, err := captureExtra(data, (*plain)(d),
		"info", "licenses", "images", "annotations", "categories")
	if err != nil {
		return err
	}
	d.extra = extra
	return nil
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	type plain Dataset
	return d.extra.merge(plain(d))
}

func (i *ImageInfo) UnmarshalJSON(data []byte) error {
	type plain ImageInfo
	extra, err := captureExtra(data, (*plain)(i),
		"id", "file_name", "width", "height", "license")
	if err != nil {
		return err
	}
	i.extra = extra
	return nil
}

func (i ImageInfo) MarshalJSON() ([]byte, error) {
	type plain ImageInfo
	return i.extra.merge(plain(i))
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	type plain Annotation
	extra, err := captureExtra(data, (*plain)(a),
		"id", "image_id", "category_id", "bbox", "area", "segmentation", "iscrowd", "score")
	if err != nil {
		return err
	}
	a.extra = extra
	return nil
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	type plain Annotation
	return a.extra.merge(plain(a))
}

func (c *Category) UnmarshalJSON(data []byte) error {
	type plain Category
	extra, err := captureExtra(data, (*plain)(c),
		"id", "name", "supercategory")
	if err != nil {
		return err
	}
	c.extra = extra
	return nil
}

func (c Category) MarshalJSON() ([]byte, error) {
	type plain Category
	return c.extra.merge(plain(c))
}

// ImageByID returns the image record with the given id, or nil.
func (d *Dataset) ImageByID(id int) *ImageInfo {
	for i := range d.Images {
		if d.Images[i].ID == id {
			return &d.Images[i]
		}
	}
	return nil
}

// CategoryByID returns the category record with the given id, or nil.
func (d *Dataset) CategoryByID(id int) *Category {
	for i := range d.Categories {
		if d.Categories[i].ID == id {
			return &d.Categories[i]
		}
	}
	return nil
}
