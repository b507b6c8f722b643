package spec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotASpecFile is returned when an explicitly named input file does
	// not carry a specification extension.
	ErrNotASpecFile = errors.New("not a test specification file")

	// ErrNoSpecFiles is returned when discovery finds nothing to run.
	ErrNoSpecFiles = errors.New("did not find any test specification files")
)

func isSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadFile parses one YAML test specification. The result is not validated;
// validation happens when the test is resolved for execution.
func LoadFile(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	var s TestSpec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse spec file %s: %w", path, err)
	}
	s.SourceFile = path
	if s.TimesToRun == 0 {
		s.TimesToRun = 1
	}
	return &s, nil
}

// LoadQueries returns the concrete query templates of a spec, reading the
// query file when the test is file-sourced. A ".tsv" file carries one query
// per line; any other file is one query as a whole.
func LoadQueries(s *TestSpec) ([]string, error) {
	if s.QueryFile == "" {
		return []string(s.Query), nil
	}

	data, err := os.ReadFile(s.QueryFile)
	if err != nil {
		return nil, fmt.Errorf("read query file %s: %w", s.QueryFile, err)
	}

	if strings.EqualFold(filepath.Ext(s.QueryFile), ".tsv") {
		var queries []string
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				queries = append(queries, line)
			}
		}
		return queries, nil
	}

	query := strings.TrimSpace(string(data))
	if query == "" {
		return nil, fmt.Errorf("%w: query file %s is empty", ErrMissingQuery, s.QueryFile)
	}
	return []string{query}, nil
}

// DiscoverFiles expands the given paths into a list of specification files.
// Directories are scanned (recursively when asked); explicitly named files
// must carry a spec extension. With no paths at all the current directory is
// scanned.
func DiscoverFiles(paths []string, recursive bool) ([]string, error) {
	if len(paths) == 0 {
		files, err := filesFromDir(".", recursive)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, ErrNoSpecFiles
		}
		return files, nil
	}

	var collected []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("input file %s: %w", path, err)
		}
		if info.IsDir() {
			files, err := filesFromDir(path, recursive)
			if err != nil {
				return nil, err
			}
			collected = append(collected, files...)
			continue
		}
		if !isSpecFile(path) {
			return nil, fmt.Errorf("%w: %s", ErrNotASpecFile, path)
		}
		collected = append(collected, path)
	}

	if len(collected) == 0 {
		return nil, ErrNoSpecFiles
	}
	return collected, nil
}

func filesFromDir(dir string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isSpecFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan directory %s: %w", dir, err)
	}
	return files, nil
}

// profilesFile is the YAML shape of a profiles file: named groups of backend
// settings that a spec can pull in via settings.profile.
type profilesFile struct {
	Profiles map[string]map[string]string `yaml:"profiles"`
}

// LoadProfiles parses a profiles file. An empty path yields no profiles.
func LoadProfiles(path string) (map[string]map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}
	return pf.Profiles, nil
}
