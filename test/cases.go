package test

import (
	"embed"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed cases
var casesFS embed.FS

type TestCase struct {
	// Description is a simple description for the test case.
	Description string `yaml:"description"`
	// Steps is a list of document operations to run in order.
	Steps []Step `yaml:"steps"`
}

type Step struct {
	// Op is the name of the operation to run.
	Op string `yaml:"op"`
	// Doc is the local name of the document the operation applies to.
	Doc string `yaml:"doc"`
	// Collection is the collection path used by "new".
	Collection string `yaml:"collection"`
	// Path is the document path used by "doc".
	Path string `yaml:"path"`
	// ID is the explicit id used by "save".
	ID     string `yaml:"id"`
	Field  string `yaml:"field"`
	Key    string `yaml:"key"`
	Value  any    `yaml:"value"`
	Values []any  `yaml:"values"`
	Force  bool   `yaml:"force"`
	// Error is the name of the error the operation is expected to return.
	Error string `yaml:"error"`
	// Expect contains the expected results of "get", "check", and "writes".
	Expect Expect `yaml:"expect"`
}

type Expect struct {
	State         string         `yaml:"state"`
	Dirty         *bool          `yaml:"dirty"`
	Path          string         `yaml:"path"`
	DirtyFields   []string       `yaml:"dirty_fields"`
	DeletedFields []string       `yaml:"deleted_fields"`
	Ops           []string       `yaml:"ops"`
	Data          map[string]any `yaml:"data"`
	Value         any            `yaml:"value"`
	Writes        []Write        `yaml:"writes"`
}

type Write struct {
	Op   string `yaml:"op"`
	Path string `yaml:"path"`
	// Payload holds plain values and the string form of field operations.
	Payload map[string]any `yaml:"payload"`
}

// TestCasePaths returns a list of all test case file paths.
func TestCasePaths() (paths []string, _ error) {
	return paths, fs.WalkDir(casesFS, "cases", func(path string, d fs.DirEntry, err error) error {
		if filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return err
	})
}

// LoadTestCase loads and parses a test case file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := fs.ReadFile(casesFS, path)
	if err != nil {
		return nil, err
	}
	var testCase TestCase
	if err := yaml.Unmarshal(data, &testCase); err != nil {
		return nil, err
	}
	return &testCase, nil
}
