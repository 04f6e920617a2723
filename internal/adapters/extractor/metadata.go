package extractor

import (
	"bufio"
	"encoding/json"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/mediabroker/internal/domain/model"
)

// Metadata expressions evaluated against the extractor's JSON info line.
// Playlist-shaped output falls back to the first entry.
const (
	titleExpr    = "title || entries[0].title || fulltitle"
	uploaderExpr = "uploader || channel || entries[0].uploader"
	durationExpr = "duration || entries[0].duration"
)

// parseMetadata extracts metadata from the last JSON object printed on stdout.
// Unparseable output yields empty metadata.
func parseMetadata(stdout string) model.MediaMetadata {
	doc := lastJSONLine(stdout)
	if doc == nil {
		return model.MediaMetadata{}
	}

	var md model.MediaMetadata
	if v, err := jmespath.Search(titleExpr, doc); err == nil {
		md.Title, _ = v.(string)
	}
	if v, err := jmespath.Search(uploaderExpr, doc); err == nil {
		md.Uploader, _ = v.(string)
	}
	if v, err := jmespath.Search(durationExpr, doc); err == nil {
		md.Duration, _ = v.(float64)
	}
	md.Title = strings.TrimSpace(md.Title)
	return md
}

func lastJSONLine(stdout string) any {
	var last any
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64<<10), stdoutLimit)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(line), &doc); err == nil {
			last = doc
		}
	}
	return last
}
