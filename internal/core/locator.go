package core

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultConfigName is looked up in the working directory.
	DefaultConfigName = "runbook.yaml"
	// DefaultConfigDir is the conventional subdirectory holding DefaultConfigName.
	DefaultConfigDir = ".runbook"
)

// Locate finds the configuration file. An explicit path wins and must exist;
// otherwise the working directory and then DefaultConfigDir are tried.
func Locate(explicit, workDir string) (string, error) {
	if explicit != "" {
		if isFile(explicit) {
			return explicit, nil
		}
		return "", &NotFoundError{
			Probed: []string{explicit},
			Hints: []string{
				fmt.Sprintf("the file given with --config does not exist: %s", explicit),
				"check the path or drop --config to use the default locations",
			},
		}
	}

	candidates := []string{
		filepath.Join(workDir, DefaultConfigName),
		filepath.Join(workDir, DefaultConfigDir, DefaultConfigName),
	}
	for _, path := range candidates {
		if isFile(path) {
			return path, nil
		}
	}

	return "", &NotFoundError{
		Probed: candidates,
		Hints: []string{
			"pass a file explicitly: runbook --config path/to/runbook.yaml",
			fmt.Sprintf("or create %s in the current directory", DefaultConfigName),
			fmt.Sprintf("or create %s", filepath.Join(DefaultConfigDir, DefaultConfigName)),
		},
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
