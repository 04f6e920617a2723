//go:build !unix

package extractor

import "os/exec"

// configureProcessGroup keeps the default cancel behavior (kill the direct child).
func configureProcessGroup(_ *exec.Cmd) {}
