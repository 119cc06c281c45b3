package orchestrator

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/argus-scan/argus/internal/types"
)

// lineWindow is how many lines of context on each side of the issue
// line are folded into the fingerprint, so a fingerprint survives small
// edits elsewhere in the file but still distinguishes nearby issues.
const lineWindow = 1

// fingerprint computes Issue.fingerprint = H(type, normalized_file,
// normalized_line_window, normalized_snippet): stable under whitespace
// normalization inside the line window, unstable under type or file
// changes.
func fingerprint(issue types.Issue, fileLines []string) string {
	h := sha256.New()
	h.Write([]byte(issue.Type))
	h.Write([]byte{0})
	h.Write([]byte(normalizeFile(issue.File)))
	h.Write([]byte{0})
	h.Write([]byte(normalizedSnippet(issue, fileLines)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeFile(path string) string {
	return strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
}

// normalizedSnippet collapses the line window around the issue into a
// single whitespace-normalized string: each line trimmed and internal
// runs of whitespace collapsed to one space, then joined with "\n".
func normalizedSnippet(issue types.Issue, fileLines []string) string {
	if issue.Line == nil || len(fileLines) == 0 {
		return ""
	}
	idx := int(*issue.Line) - 1
	lo := idx - lineWindow
	hi := idx + lineWindow
	if lo < 0 {
		lo = 0
	}
	if hi >= len(fileLines) {
		hi = len(fileLines) - 1
	}
	if idx < 0 || idx >= len(fileLines) {
		return ""
	}

	var normalized []string
	for i := lo; i <= hi; i++ {
		normalized = append(normalized, normalizeWhitespace(fileLines[i]))
	}
	return strings.Join(normalized, "\n")
}

func normalizeWhitespace(line string) string {
	fields := strings.Fields(line)
	return strings.Join(fields, " ")
}

// readLines reads path into a line slice for fingerprinting. A read
// failure yields an empty slice rather than an error: a missing file
// (deleted between walk and analyze) degrades the fingerprint, it
// doesn't fail the scan.
func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
