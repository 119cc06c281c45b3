// Package sandbox implements the two-stage Sandbox Validator (C9): a fast
// in-process yaegi dry-run for Go proposals, followed by a full container
// build (and optional test) via the Docker Engine API. The yaegi stage
// checks the patched file's source in memory; the container stage runs on
// a throwaway bind-mounted copy of the project, and the copy and the
// container are removed before Validate returns, win or lose.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/argus-scan/argus/internal/diffutil"
	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// Validator is the sandbox.Validate implementation wired into the Safety
// Gate's SandboxRunner interface. Docker is optional: a nil docker client
// (e.g. no daemon reachable at startup) degrades to yaegi-only validation
// for Go proposals and rejects everything else as build_failed, so a dev
// box without Docker installed doesn't deadlock the whole gate.
type Validator struct {
	docker        *dockerRunner
	wallBudget    time.Duration
	nanoCPUs      int64
	memoryBytes   int64
	defaultNetLoopback bool
}

// New constructs a Validator. Docker connection failures are logged and
// treated as "no container stage available" rather than a fatal error.
func New(cfg Config) *Validator {
	v := &Validator{
		wallBudget:         time.Duration(cfg.WallBudgetSec) * time.Second,
		nanoCPUs:           cfg.NanoCPUs,
		memoryBytes:        cfg.MemoryMB * 1024 * 1024,
		defaultNetLoopback: cfg.NetworkMode == "loopback",
	}
	if v.wallBudget <= 0 {
		v.wallBudget = 30 * time.Second
	}
	runner, err := newDockerRunner()
	if err != nil {
		logging.Sandbox("docker unavailable, falling back to yaegi-only validation: %v", err)
		return v
	}
	v.docker = runner
	return v
}

// Config mirrors config.SandboxConfig; kept local so this package doesn't
// depend on internal/config (only the engine's composition root does).
type Config struct {
	WallBudgetSec int64
	NanoCPUs      int64
	MemoryMB      int64
	NetworkMode   string
}

// Close releases the Docker client, if any.
func (v *Validator) Close() error {
	if v.docker == nil {
		return nil
	}
	return v.docker.Close()
}

// Validate satisfies safety.SandboxRunner. postApplyContent is the full
// file content after the proposal's span has been applied, already
// computed and integrity-checked by the caller; Validate never re-derives
// it, it only writes it into the throwaway copy.
func (v *Validator) Validate(ctx context.Context, project string, proposal types.FixProposal, postApplyContent []byte) (types.SandboxRun, error) {
	langID := languageIDForPath(proposal.OriginalSpan.Path)

	if langID == "go" {
		if err := dryRunGo(ctx, string(postApplyContent)); err != nil {
			return types.SandboxRun{
				ProposalID: proposal.ID,
				Outcome:    types.SandboxBuildFailed,
				Violations: []string{err.Error()},
			}, nil
		}
	}

	if v.docker == nil {
		if langID != "go" {
			return types.SandboxRun{
				ProposalID: proposal.ID,
				Outcome:    types.SandboxBuildFailed,
				Violations: []string{fmt.Sprintf("no container stage available to validate language %q", langID)},
			}, nil
		}
		return types.SandboxRun{ProposalID: proposal.ID, Outcome: types.SandboxOK}, nil
	}

	policy, err := LoadPolicy(project)
	if err != nil {
		return types.SandboxRun{}, fmt.Errorf("sandbox: failed to load policy: %w", err)
	}

	buildCmd, testCmd, allowLoopback := resolveCommands(policy, langID, v.defaultNetLoopback)
	if buildCmd == nil {
		return types.SandboxRun{
			ProposalID: proposal.ID,
			Outcome:    types.SandboxBuildFailed,
			Violations: []string{fmt.Sprintf("no build command for language %q and no policy descriptor present", langID)},
		}, nil
	}

	workdir, err := stageWorkingCopy(project, proposal.OriginalSpan.Path, postApplyContent)
	if err != nil {
		return types.SandboxRun{}, fmt.Errorf("sandbox: failed to stage working copy: %w", err)
	}
	defer os.RemoveAll(workdir)

	run, err := v.docker.run(ctx, containerRunParams{
		languageID:    langID,
		buildCommand:  buildCmd,
		testCommand:   testCmd,
		allowLoopback: allowLoopback,
		wallBudget:    v.wallBudget,
		nanoCPUs:      v.nanoCPUs,
		memoryBytes:   v.memoryBytes,
		workdir:       workdir,
	})
	if err != nil {
		return types.SandboxRun{}, err
	}
	run.ProposalID = proposal.ID
	return run, nil
}

// resolveCommands picks the project's explicit policy commands, falling
// back to the language-default heuristic when no descriptor is present.
func resolveCommands(policy *Policy, langID string, defaultLoopback bool) (build, test []string, allowLoopback bool) {
	if policy != nil {
		build = policy.BuildCommand
		test = policy.TestCommand
		allowLoopback = policy.AllowLoopback
		if build == nil {
			build = languageDefault(langID)
		}
		return build, test, allowLoopback
	}
	return languageDefault(langID), nil, defaultLoopback
}

// stageWorkingCopy makes a throwaway copy of project under a fresh temp
// directory, then overwrites targetPath (relative to project) with the
// post-apply content. Only this single file differs from project; the
// rest of the tree is copied read-write because most build tools expect a
// normal writable module cache/output directory alongside the source.
func stageWorkingCopy(project, targetPath string, postApplyContent []byte) (string, error) {
	dir, err := os.MkdirTemp("", "argus-sandbox-*")
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(project, targetPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(targetPath)
	}

	if err := copyTree(project, dir); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	dest := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	if err := os.WriteFile(dest, postApplyContent, 0644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// copyTree copies src into dst, skipping VCS and vendor directories that
// would only inflate the bind mount without affecting the build.
func copyTree(src, dst string) error {
	skip := map[string]bool{".git": true, "node_modules": true, ".argus": true}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if skip[info.Name()] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// languageIDForPath infers a language id from a file extension; kept local
// to avoid a dependency on internal/analyzer for a one-line lookup.
func languageIDForPath(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	default:
		return ""
	}
}

// applyForSandbox is a thin wrapper the engine composition root can use to
// recompute postApplyContent from a fresh read, mirroring the Safety
// Gate's own use of diffutil.Apply so both call sites share one source of
// truth for span application.
func applyForSandbox(content []byte, proposal types.FixProposal) ([]byte, error) {
	return diffutil.Apply(content, proposal.OriginalSpan, proposal.OriginalText, proposal.ReplacementText)
}
