// Package context implements the Context Analyzer (C5): classifies a
// file path into {production, test, demo, config, generated, vendored,
// script} using path-segment heuristics plus a content sniff, feeding
// both the False-Positive Detector and the Fix Proposer's severity
// policy (fixes in test/demo contexts are held to stricter patterns).
package context

import (
	"path/filepath"
	"strings"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

var testSegments = map[string]bool{
	"test": true, "tests": true, "spec": true, "specs": true,
	"__tests__": true, "testdata": true,
}

var vendoredSegments = map[string]bool{
	"vendor": true, "node_modules": true, "third_party": true,
	"thirdparty": true, ".venv": true, "site-packages": true,
}

var demoSegments = map[string]bool{
	"demo": true, "demos": true, "examples": true, "example": true, "sample": true, "samples": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true, ".cfg": true,
}

var generatedNameSuffixes = []string{"_generated.go", "_pb2.py", ".pb.go", "_gen.go"}

// Classify assigns a FileContext to path, optionally sniffing content
// for markers a pure path-based heuristic cannot see (generated-file
// headers, shebang lines).
func Classify(path string, content []byte) types.FileContext {
	segments := pathSegments(path)
	base := filepath.Base(path)

	for _, seg := range segments {
		lower := strings.ToLower(seg)
		if vendoredSegments[lower] {
			logging.ContextDebug("classify %s: vendored segment %q", path, seg)
			return types.ContextVendored
		}
	}

	for _, suffix := range generatedNameSuffixes {
		if strings.HasSuffix(base, suffix) {
			logging.ContextDebug("classify %s: generated suffix %q", path, suffix)
			return types.ContextGenerated
		}
	}
	if sniffGeneratedHeader(content) {
		logging.ContextDebug("classify %s: generated header sniff", path)
		return types.ContextGenerated
	}

	for _, seg := range segments {
		lower := strings.ToLower(seg)
		if testSegments[lower] {
			return types.ContextTest
		}
	}
	if isTestFileName(base) {
		return types.ContextTest
	}

	for _, seg := range segments {
		lower := strings.ToLower(seg)
		if demoSegments[lower] {
			return types.ContextDemo
		}
	}

	if isRepoRootConfig(path, segments) {
		return types.ContextConfig
	}

	if sniffShebang(content) {
		return types.ContextScript
	}

	return types.ContextProduction
}

func pathSegments(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	return strings.Split(clean, "/")
}

func isTestFileName(base string) bool {
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.HasSuffix(base, "_test.py"):
		return true
	}
	return false
}

// isRepoRootConfig treats a bare extension-config file at the project
// root (one path segment, i.e. no directory component) as config;
// nested config files (e.g. deep in a production package) are left
// classified as production since they ship with the running program.
func isRepoRootConfig(path string, segments []string) bool {
	if len(segments) != 1 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return configExtensions[ext]
}

func sniffGeneratedHeader(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	head := content
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.Contains(string(head), "Code generated") && strings.Contains(string(head), "DO NOT EDIT")
}

func sniffShebang(content []byte) bool {
	return len(content) >= 2 && content[0] == '#' && content[1] == '!'
}
