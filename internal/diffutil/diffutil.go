// Package diffutil computes and applies single-span textual replacements
// for the Fix Proposer (C7) and Safety Gate (C8), grounded on a
// reference diff package (sergi/go-diff's DiffMatchPatch engine) but
// narrowed from multi-hunk file diffing to the single-contiguous-span
// contract a FixProposal requires.
package diffutil

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/argus-scan/argus/internal/types"
)

// dmp is shared package-wide; DiffMatchPatch has no mutable configuration
// state that would make concurrent use unsafe beyond its own internal
// locking, matching the package-level DefaultEngine singleton.
var dmp = diffmatchpatch.New()

// SingleSpan computes the minimal contiguous byte span covering every
// difference between oldText and newText, expressed as line/column
// coordinates against oldText. Returns ok=false when the two texts are
// identical (no fix to propose).
func SingleSpan(path, oldText, newText string) (span types.Span, originalText, replacementText string, ok bool) {
	if oldText == newText {
		return types.Span{}, "", "", false
	}

	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	startOld, endOld := 0, 0
	startNew, endNew := 0, 0
	cursorOld, cursorNew := 0, 0
	foundStart := false

	for _, d := range diffs {
		n := len(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			cursorOld += n
			cursorNew += n
		case diffmatchpatch.DiffDelete:
			if !foundStart {
				startOld, startNew = cursorOld, cursorNew
				foundStart = true
			}
			cursorOld += n
			endOld = cursorOld
			endNew = cursorNew
		case diffmatchpatch.DiffInsert:
			if !foundStart {
				startOld, startNew = cursorOld, cursorNew
				foundStart = true
			}
			cursorNew += n
			endOld = cursorOld
			endNew = cursorNew
		}
	}
	if !foundStart {
		return types.Span{}, "", "", false
	}

	line, col := lineCol(oldText, startOld)
	span = types.Span{
		Path: path,
		Line: line,
		Col:  col,
		Len:  uint32(endOld - startOld),
	}
	return span, oldText[startOld:endOld], newText[startNew:endNew], true
}

// lineCol converts a byte offset into 1-indexed (line, col).
func lineCol(text string, offset int) (uint32, uint32) {
	if offset > len(text) {
		offset = len(text)
	}
	prefix := text[:offset]
	line := uint32(1 + strings.Count(prefix, "\n"))
	lastNL := strings.LastIndexByte(prefix, '\n')
	col := uint32(offset - lastNL) // lastNL == -1 gives offset+1, i.e. 1-indexed from start
	return line, col
}

// ByteOffset is the inverse of lineCol: converts a 1-indexed (line, col)
// back to a byte offset within text, used when applying a span against
// bytes that may have shifted slightly since the span was computed.
func ByteOffset(text string, line, col uint32) (int, error) {
	lines := strings.SplitAfter(text, "\n")
	if int(line) > len(lines) {
		return 0, fmt.Errorf("line %d out of range (file has %d lines)", line, len(lines))
	}
	offset := 0
	for i := uint32(0); i < line-1; i++ {
		offset += len(lines[i])
	}
	return offset + int(col) - 1, nil
}

// Apply replaces the bytes at span within content with replacement,
// verifying that span's bytes currently equal expectedOriginal (the
// invariant every apply path, including Layer 3's emergency re-check,
// must hold before writing).
func Apply(content []byte, span types.Span, expectedOriginal, replacement string) ([]byte, error) {
	offset, err := ByteOffset(string(content), span.Line, span.Col)
	if err != nil {
		return nil, err
	}
	end := offset + int(span.Len)
	if offset < 0 || end > len(content) {
		return nil, fmt.Errorf("span out of bounds: offset=%d end=%d len=%d", offset, end, len(content))
	}
	actual := string(content[offset:end])
	if actual != expectedOriginal {
		return nil, fmt.Errorf("%w: expected %q, found %q", types.ErrIntegrityViolation, expectedOriginal, actual)
	}

	out := make([]byte, 0, len(content)-len(expectedOriginal)+len(replacement))
	out = append(out, content[:offset]...)
	out = append(out, replacement...)
	out = append(out, content[end:]...)
	return out, nil
}
