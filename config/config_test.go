package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t testing.TB, data string) string {
	filename := filepath.Join(t.TempDir(), "config.yml")

	err := os.WriteFile(filename, []byte(data), 0600)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}

	return filename
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	err := Default().Validate()
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	filename := writeConfig(t, `
validate: strict
pages: "1,3-4"
detector:
  min_rows: 3
  use_whitespace: false
batch:
  jobs: 2
`)

	cfg, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}

	want := Default()
	want.Validate = ValidateStrict
	want.Pages = "1,3-4"
	want.Detector.MinRows = 3
	want.Detector.UseWhitespace = false
	want.Batch.Jobs = 2

	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("wrong config, want\n  %+v\ngot\n  %+v", want, cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data    string
		invalid bool
	}{
		{data: "unknown_key: 1"},
		{data: "detector: [1, 2]"},
		{data: "validate: sometimes", invalid: true},
		{data: "pages: 3-1", invalid: true},
		{data: "detector:\n  min_confidence: 1.5", invalid: true},
		{data: "detector:\n  min_cols: 0", invalid: true},
		{data: "detector:\n  name: \"\"", invalid: true},
		{data: "batch:\n  jobs: 0", invalid: true},
		{data: "backend: \"\"", invalid: true},
	}

	for _, test := range tests {
		test := test

		t.Run("", func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, test.data))
			if err == nil {
				t.Fatalf("loading %q did not return an error", test.data)
			}

			if test.invalid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("wrong error, want %v, got %v", ErrInvalidConfig, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("wrong error, want %v, got %v", os.ErrNotExist, err)
	}
}
