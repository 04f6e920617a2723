package extractor

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// listOutputFiles returns the base names of finished regular files in dir.
// Dot-files (staged cookies) and partial downloads are skipped.
func listOutputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || isPartial(name) {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) || strings.Contains(lower, s+".") {
			return true
		}
	}
	return false
}

// clearAttemptArtifacts removes everything but dot-files from dir so a retry
// starts from a clean directory.
func clearAttemptArtifacts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
