package sandbox

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy is the per-project sandbox policy descriptor (,
// optional): declares the minimal build command and an optional test
// command. Absent descriptors fall back to language-default heuristics
// and, failing those, the sandbox rejects proposals that would require
// execution.
type Policy struct {
	BuildCommand  []string `yaml:"build_command"`
	TestCommand   []string `yaml:"test_command,omitempty"`
	AllowLoopback bool     `yaml:"allow_loopback"`
}

// policyFileName is the descriptor's fixed location within a project.
const policyFileName = ".argus-sandbox.yaml"

// LoadPolicy reads the project's sandbox policy descriptor, returning
// (nil, nil) when absent so callers fall back to language defaults.
func LoadPolicy(project string) (*Policy, error) {
	data, err := os.ReadFile(filepath.Join(project, policyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// languageDefault returns a best-effort build command heuristic for
// languages with an unambiguous convention, or nil when none applies.
func languageDefault(languageID string) []string {
	switch languageID {
	case "go":
		return []string{"go", "build", "./..."}
	case "python":
		return []string{"python3", "-m", "py_compile"}
	default:
		return nil
	}
}
