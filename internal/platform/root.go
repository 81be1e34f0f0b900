package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectConfigName is the project-local configuration file.
const ProjectConfigName = "jotter.yaml"

// FindRoot looks upwards from startDir for a project root, marked by a
// .jotter directory or a jotter.yaml file, and returns its absolute path.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, ".jotter") || hasFile(dir, ProjectConfigName) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

// ProjectConfig returns the jotter.yaml of the enclosing project, if any.
func ProjectConfig(startDir string) (string, bool) {
	root, err := FindRoot(startDir)
	if err != nil {
		return "", false
	}
	path := filepath.Join(root, ProjectConfigName)
	if !hasFile(root, ProjectConfigName) {
		return "", false
	}
	return path, true
}

func hasFile(dir, name string) bool {
	path := filepath.Join(dir, name)
	_, err := os.Stat(path)
	return err == nil
}
