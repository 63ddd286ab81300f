package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

var percentPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// ParseProgress extracts a percentage from a download-progress line. Only
// lines carrying the tool's "[download]" marker are considered; everything
// else belongs in the log but not in the progress field.
func ParseProgress(line string) (float64, bool) {
	if !strings.Contains(line, "[download]") {
		return 0, false
	}
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return percent, true
}
