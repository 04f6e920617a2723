package extractor

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/target/mediabroker/internal/domain/model"
)

const probeTimeout = 10 * time.Second

// Probe reports extractor version, conversion helper and credential presence.
func (e *Extractor) Probe(ctx context.Context) model.ExtractorProbe {
	p := model.ExtractorProbe{
		Binary:          e.binary,
		FFmpegAvailable: e.ffmpegPath() != "",
		CookiesFile:     e.cookiesFile,
		CookiesPresent:  e.cookiesPresent(),
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, "--version")
	configureProcessGroup(cmd)
	out, err := cmd.Output()
	if err != nil {
		p.Error = err.Error()
		return p
	}

	p.Available = true
	p.Version = strings.TrimSpace(string(out))
	return p
}
