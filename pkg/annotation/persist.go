package annotation

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"microvol/internal/models"
)

// segmentTuple encodes as a flow sequence: [x0, y0, x1, y1].
type segmentTuple [4]int

func (t segmentTuple) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range t {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)})
	}
	return n, nil
}

type segmentFile struct {
	Segments []segmentTuple `yaml:"segments"`
}

// MarshalSegments encodes segments as a YAML document.
func MarshalSegments(segments []models.LineSegment) ([]byte, error) {
	doc := segmentFile{Segments: make([]segmentTuple, 0, len(segments))}
	for _, s := range segments {
		doc.Segments = append(doc.Segments, segmentTuple(s.Tuple()))
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal segments: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalSegments decodes a document written by MarshalSegments.
func UnmarshalSegments(data []byte) ([]models.LineSegment, error) {
	var doc struct {
		Segments [][]int `yaml:"segments"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse segments: %w", err)
	}
	out := make([]models.LineSegment, 0, len(doc.Segments))
	for i, s := range doc.Segments {
		if len(s) != 4 {
			return nil, fmt.Errorf("segment %d has %d coordinates, want 4", i, len(s))
		}
		out = append(out, models.SegmentFromTuple([4]int{s[0], s[1], s[2], s[3]}))
	}
	return out, nil
}

// SaveSegments writes segments to path as YAML.
func SaveSegments(path string, segments []models.LineSegment) error {
	data, err := MarshalSegments(segments)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// LoadSegments reads a segment record written by SaveSegments.
func LoadSegments(path string) ([]models.LineSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}
	return UnmarshalSegments(data)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

// writeFileAtomic writes through a temporary file in the target directory
// and renames it into place, so path is either absent, unchanged, or complete.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	name := tmp.Name()
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
