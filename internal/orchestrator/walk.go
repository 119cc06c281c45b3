package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// walkFile is a single enumerated candidate: project-relative path plus
// absolute path for reading.
type walkFile struct {
	relPath string
	absPath string
	size    int64
}

// oversizedFile is a file that was enumerated but exceeds the size cap;
// recorded with a reason rather than silently dropped, per the "file at
// size cap + 1: skipped with a recorded reason" boundary behavior.
type oversizedFile struct {
	relPath string
	reason  string
}

// enumerate walks root, collecting regular files that are not excluded
// and (for directories) not a symlink escaping root. Files above
// sizeCapBytes are returned separately as oversized rather than being
// silently omitted. Grounded on a prior internal/world.Scanner.ScanDirectory
// filepath.Walk shape, generalized to a configurable exclusion set
// instead of a hardcoded hidden-dir allowlist.
func enumerate(root string, excludePatterns []string, sizeCapBytes int64) ([]walkFile, []oversizedFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, err
	}
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		resolvedRoot = absRoot
	}

	var files []walkFile
	var oversized []oversizedFile
	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, linkErr := filepath.EvalSymlinks(path)
			if linkErr != nil || !withinRoot(resolvedRoot, target) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		name := info.Name()
		if isExcluded(name, rel, excludePatterns) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}
		relSlash := filepath.ToSlash(rel)
		if sizeCapBytes > 0 && info.Size() > sizeCapBytes {
			oversized = append(oversized, oversizedFile{
				relPath: relSlash,
				reason:  fmt.Sprintf("file size %d exceeds cap %d bytes", info.Size(), sizeCapBytes),
			})
			return nil
		}

		files = append(files, walkFile{
			relPath: relSlash,
			absPath: path,
			size:    info.Size(),
		})
		return nil
	})
	return files, oversized, err
}

func withinRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isExcluded(name, rel string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if strings.Contains(rel, p+string(filepath.Separator)) || strings.HasPrefix(rel, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
