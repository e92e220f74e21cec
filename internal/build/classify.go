package build

import (
	"strings"

	"git.home.luguber.info/inful/paperx/internal/engine"
)

// bibliographyMarkers classify bibtex and biber output.
var bibliographyMarkers = append([]string{
	"(There was 1 error message)",
	"error messages)",
	"ERROR - ",
}, engine.CommonFatalMarkers...)

// classify reports whether out represents a failed step and returns the log
// excerpt to show. Fatal markers override a zero exit code.
func classify(out Output, markers []string, maxLines int) (failed bool, excerpt string) {
	text := string(out.Combined)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	markerLine := -1
	for i, line := range lines {
		if hasMarker(line, markers) {
			markerLine = i
			break
		}
	}

	failed = out.ExitCode != 0 || markerLine >= 0
	if !failed {
		return false, tail(lines, maxLines)
	}
	if markerLine >= 0 {
		end := min(markerLine+maxLines, len(lines))
		return true, strings.Join(lines[markerLine:end], "\n")
	}
	return true, tail(lines, maxLines)
}

func hasMarker(line string, markers []string) bool {
	for _, m := range markers {
		if anchored, ok := strings.CutPrefix(m, engine.LineStart); ok {
			if strings.HasPrefix(line, anchored) {
				return true
			}
			continue
		}
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func tail(lines []string, n int) string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
