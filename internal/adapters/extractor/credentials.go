package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// stagedCookiesName is a dot-file so it never shows up as job output.
const stagedCookiesName = ".cookies.txt"

// cookiesPresent reports whether the configured session file is a readable regular file.
func (e *Extractor) cookiesPresent() bool {
	if e.cookiesFile == "" {
		return false
	}
	info, err := os.Stat(e.cookiesFile)
	return err == nil && info.Mode().IsRegular()
}

// stageCookies copies the session file into workDir so the extractor may
// rewrite it without touching the (possibly read-only) original. It returns ""
// when no credentials are available.
func (e *Extractor) stageCookies(workDir string) (string, error) {
	if !e.cookiesPresent() {
		return "", nil
	}

	src, err := os.Open(e.cookiesFile)
	if err != nil {
		return "", fmt.Errorf("open cookies file: %w", err)
	}
	defer src.Close()

	dstPath := filepath.Join(workDir, stagedCookiesName)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create staged cookies: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("copy cookies: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("close staged cookies: %w", err)
	}
	return dstPath, nil
}
