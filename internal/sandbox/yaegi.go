package sandbox

import (
	"context"
	"fmt"
	"regexp"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/argus-scan/argus/internal/logging"
)

// yaegiAllowedPackages mirrors a prior YaegiExecutor whitelist
// (internal/autopoiesis/yaegi_executor.go): stdlib-only, no filesystem,
// process, or network access, so this stage can run before any
// isolation is in place.
var yaegiAllowedPackages = map[string]bool{
	"strings": true, "strconv": true, "fmt": true, "math": true,
	"regexp": true, "encoding/json": true, "time": true, "sort": true,
	"bytes": true, "path": true, "path/filepath": true, "errors": true,
	"unicode": true, "unicode/utf8": true,
}

// dryRunGo feeds patched Go source to an in-process yaegi interpreter
// restricted to stdlib symbols. A syntax or type error here is a cheap
// build_failed classification without ever touching Docker. Only the
// single patched file is checked in isolation; it is not expected to
// resolve the rest of the package's imports, so this is a best-effort
// fast rejection, not a substitute for the full container build.
func dryRunGo(ctx context.Context, source string) error {
	if bad := disallowedImport(source); bad != "" {
		return fmt.Errorf("yaegi: import %q is outside the sandbox allow-list", bad)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("yaegi: failed to load stdlib symbols: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := i.Eval(source)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			logging.SandboxDebug("yaegi dry-run rejected patched source: %v", err)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var importLineRE = regexp.MustCompile(`"([a-zA-Z0-9_./-]+)"`)

// disallowedImport does a lightweight textual scan of the source's import
// block (yaegi has no import-filtering hook of its own) and returns the
// first package path outside yaegiAllowedPackages, or "" if all imports
// are covered by the allow-list.
func disallowedImport(source string) string {
	start := indexOfImportBlock(source)
	if start < 0 {
		return ""
	}
	end := indexOfRune(source[start:], ')')
	if end < 0 {
		return ""
	}
	block := source[start : start+end]
	for _, m := range importLineRE.FindAllStringSubmatch(block, -1) {
		if !yaegiAllowedPackages[m[1]] {
			return m[1]
		}
	}
	return ""
}

func indexOfImportBlock(source string) int {
	const marker = "import ("
	for i := 0; i+len(marker) <= len(source); i++ {
		if source[i:i+len(marker)] == marker {
			return i + len(marker)
		}
	}
	return -1
}

func indexOfRune(s string, r byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == r {
			return i
		}
	}
	return -1
}
