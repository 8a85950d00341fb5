package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/yungbote/coursesync/internal/pkg/errors"
)

// CourseMeta is the parsed course descriptor (course.yaml or course.json).
type CourseMeta struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
	Authors     []string `yaml:"authors" json:"authors"`
	Chapters    []string `yaml:"chapters" json:"chapters"`
}

// GuideMeta is the structured front matter of a lesson's guide.md.
type GuideMeta struct {
	Name        string     `yaml:"name"`
	Environment string     `yaml:"environment"`
	Tasks       []TaskMeta `yaml:"tasks"`
}

type TaskMeta struct {
	Instructions       string          `yaml:"instructions"`
	CompletedByDefault bool            `yaml:"completed_by_default"`
	Conditions         []ConditionMeta `yaml:"conditions"`
}

// ConditionMeta operands are opaque to the pipeline; Scalar keeps whatever
// the author wrote without YAML type coercion.
type ConditionMeta struct {
	Type  string `yaml:"type"`
	In    Scalar `yaml:"in"`
	Is    Scalar `yaml:"is"`
	Value Scalar `yaml:"value"`
}

// Scalar captures a YAML scalar verbatim, so `value: true` stays "true".
type Scalar string

func (s *Scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar, got %v", value.Kind)
	}
	*s = Scalar(value.Value)
	return nil
}

// ReadCourse parses the course descriptor in dir. course.yaml takes
// precedence over course.json when both exist.
func ReadCourse(dir string) (*CourseMeta, error) {
	meta := &CourseMeta{}

	yamlPath := filepath.Join(dir, "course.yaml")
	jsonPath := filepath.Join(dir, "course.json")

	switch {
	case fileExists(yamlPath):
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", pkgerrors.ErrFilesystem, yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, meta); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", pkgerrors.ErrMalformedMetadata, yamlPath, err)
		}
	case fileExists(jsonPath):
		raw, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", pkgerrors.ErrFilesystem, jsonPath, err)
		}
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", pkgerrors.ErrMalformedMetadata, jsonPath, err)
		}
	default:
		return nil, fmt.Errorf("%w: no course.yaml or course.json in %s", pkgerrors.ErrMalformedMetadata, dir)
	}

	if err := validateCourseMeta(dir, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func validateCourseMeta(dir string, meta *CourseMeta) error {
	if strings.TrimSpace(meta.ID) == "" {
		return fmt.Errorf("%w: course descriptor in %s has no id", pkgerrors.ErrMalformedMetadata, dir)
	}
	if strings.TrimSpace(meta.Name) == "" {
		return fmt.Errorf("%w: course descriptor in %s has no name", pkgerrors.ErrMalformedMetadata, dir)
	}
	if len(meta.Chapters) == 0 {
		return fmt.Errorf("%w: course descriptor in %s declares no chapters", pkgerrors.ErrMalformedMetadata, dir)
	}
	// Two chapter names that slugify to the same directory segment would
	// silently collapse into one directory, so reject them outright.
	seen := make(map[string]string, len(meta.Chapters))
	for _, name := range meta.Chapters {
		slug := Slugify(name)
		if prior, ok := seen[slug]; ok {
			return fmt.Errorf("%w: chapters %q and %q in %s share slug %q",
				pkgerrors.ErrMalformedMetadata, prior, name, dir, slug)
		}
		seen[slug] = name
	}
	return nil
}

const frontMatterDelim = "---"

// ReadGuide splits a guide document into its front matter and free-form body.
// The body is returned as-is and never interpreted.
func ReadGuide(path string) (*GuideMeta, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: guide %s not found", pkgerrors.ErrMalformedMetadata, path)
		}
		return nil, "", fmt.Errorf("%w: read %s: %v", pkgerrors.ErrFilesystem, path, err)
	}

	preamble, body, err := splitFrontMatter(string(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", pkgerrors.ErrMalformedMetadata, path, err)
	}

	meta := &GuideMeta{}
	if err := yaml.Unmarshal([]byte(preamble), meta); err != nil {
		return nil, "", fmt.Errorf("%w: parse front matter of %s: %v", pkgerrors.ErrMalformedMetadata, path, err)
	}
	if strings.TrimSpace(meta.Name) == "" {
		return nil, "", fmt.Errorf("%w: front matter of %s has no name", pkgerrors.ErrMalformedMetadata, path)
	}
	return meta, body, nil
}

func splitFrontMatter(doc string) (preamble, body string, err error) {
	normalized := strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontMatterDelim+"\n") {
		return "", "", fmt.Errorf("document does not start with front matter")
	}
	rest := normalized[len(frontMatterDelim)+1:]

	// The terminator is a line holding exactly "---"; lines that merely start
	// with three dashes (a "----" rule, "--- title") are front matter content.
	offset := 0
	for {
		i := strings.Index(rest[offset:], "\n"+frontMatterDelim)
		if i < 0 {
			return "", "", fmt.Errorf("front matter is not terminated")
		}
		end := offset + i
		tail := rest[end+1+len(frontMatterDelim):]
		if tail == "" || strings.HasPrefix(tail, "\n") {
			return rest[:end], strings.TrimPrefix(tail, "\n"), nil
		}
		offset = end + 1
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
