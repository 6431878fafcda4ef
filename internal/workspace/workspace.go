package workspace

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/boyter/gocodewalker"

	f "github.com/ros-tooling/changelog-collator/pkg/functional"
)

const ManifestFile = "package.xml"

var DefaultSkipMarkers = []string{"COLCON_IGNORE", "AMENT_IGNORE", "CATKIN_IGNORE"}

// Package is a source package found in the workspace.
type Package struct {
	Name string
	// Dir is the absolute path of the directory holding the manifest.
	Dir string
}

type Options struct {
	// SkipMarkers name files which exclude their directory and everything below it.
	SkipMarkers []string
	// Ignore holds doublestar globs matched against package directories
	// relative to the workspace root.
	Ignore []string
}

type manifest struct {
	XMLName xml.Name `xml:"package"`
	Name    string   `xml:"name"`
}

// Discover walks root and returns every package it holds, sorted by name.
func Discover(root string, opts Options, warn io.Writer) ([]Package, error) {
	if rootStat, err := os.Stat(root); err != nil || !rootStat.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", root)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fileListQueue := make(chan *gocodewalker.File, 100)

	walker := gocodewalker.NewFileWalker(root, fileListQueue)
	walker.IncludeHidden = true
	walker.ExcludeDirectory = []string{".git"}
	walker.IgnoreGitIgnore = true
	walker.IgnoreIgnoreFile = true

	errChan := make(chan error)

	go func() {
		err := walker.Start()
		errChan <- err
		close(errChan)
	}()

	manifestDirs := make([]string, 0)
	skipped := make([]string, 0)
	for file := range fileListQueue {
		dir := filepath.Dir(file.Location)
		switch {
		case file.Filename == ManifestFile:
			manifestDirs = append(manifestDirs, dir)
		case slices.Contains(opts.SkipMarkers, file.Filename):
			skipped = append(skipped, dir)
		}
	}

	if err := <-errChan; err != nil {
		return nil, fmt.Errorf("error walking workspace: %s", err)
	}

	manifestDirs = f.Filtered(manifestDirs, func(dir string) bool {
		return !underAny(dir, skipped)
	})
	packages := make([]Package, 0, len(manifestDirs))
	for _, dir := range manifestDirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, err
		}
		if ignored(filepath.ToSlash(rel), opts.Ignore, warn) {
			continue
		}
		name, err := ReadManifest(dir)
		if err != nil {
			_, _ = fmt.Fprintf(warn, "WARNING: skipping %s: %v\n", rel, err)
			continue
		}
		packages = append(packages, Package{Name: name, Dir: dir})
	}

	slices.SortFunc(packages, func(a, b Package) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Dir, b.Dir)
	})
	return packages, nil
}

// ReadManifest returns the package name declared in dir/package.xml.
func ReadManifest(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return "", err
	}
	var m manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return "", fmt.Errorf("%s has no package name", ManifestFile)
	}
	return name, nil
}

func underAny(dir string, parents []string) bool {
	for _, parent := range parents {
		if dir == parent || strings.HasPrefix(dir, parent+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func ignored(rel string, patterns []string, warn io.Writer) bool {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			_, _ = fmt.Fprintf(warn, "WARNING: invalid ignore pattern %q\n", pattern)
			continue
		}
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}
	return false
}
