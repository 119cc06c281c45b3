// Package safety implements the Four-Layer Safety Gate (C8): the only
// path by which a FixProposal may touch the filesystem. Layer ordering
// is total (pattern scan -> approval -> emergency re-check -> sandbox);
// no layer is ever short-circuited. Grounded on a prior emergency
// controls/kill-switch shape in internal/autopoiesis (checker.go,
// profiles) generalized from a single kill-switch into a four-stage
// gate with its own audit trail.
package safety

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/argus-scan/argus/internal/diffutil"
	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/types"
)

// SandboxRunner is the Layer 4 capability. internal/sandbox.Validator
// satisfies it; kept as an interface here so safety never imports
// sandbox's Docker/yaegi dependencies directly.
type SandboxRunner interface {
	Validate(ctx context.Context, project string, proposal types.FixProposal, postApplyContent []byte) (types.SandboxRun, error)
}

// Approver is the Layer 2 external approval surface: an interactive
// collaborator. A CLI or IDE plugin implements this; the gate never
// assumes a particular UI.
type Approver interface {
	Approve(ctx context.Context, proposal types.FixProposal) (types.ApprovalRecord, error)
}

// Outcome is the gate's terminal verdict for one proposal.
type Outcome string

const (
	OutcomeApplied             Outcome = "applied"
	OutcomeRejectPattern       Outcome = "reject_pattern"
	OutcomeApprovalRejected    Outcome = "approval_rejected"
	OutcomeApprovalDeferred    Outcome = "approval_deferred"
	OutcomeIntegrityViolation  Outcome = "integrity_violation"
	OutcomeSandboxRejected     Outcome = "sandbox_rejected"
	OutcomeSessionCompromised  Outcome = "session_compromised"
)

// Result is the full trace of a proposal's trip through the gate, kept
// for callers that want to render per-layer detail.
type Result struct {
	Outcome     Outcome
	Proposal    types.FixProposal
	Approval    *types.ApprovalRecord
	SandboxRun  *types.SandboxRun
	MatchedRule string
	Evidence    string
	Err         error
}

// Config tunes the gate. Defaults mirror config.SafetyConfig.
type Config struct {
	AutoApproveMinScore uint8
	AutoApproveContexts map[types.FileContext]bool
	BackupRetention     int
}

// Gate is one safety-gate instance for a single engine run. A
// compromised run (an integrity violation was observed) refuses every
// subsequent Evaluate call "the engine marks the session
// as compromised and declines to apply further fixes in this run."
type Gate struct {
	store    *memory.Store
	patterns []Pattern
	sandbox  SandboxRunner
	approver Approver
	cfg      Config

	mu          sync.Mutex
	trust       map[string]float64 // issue.Type -> moving average of approval rate
	compromised atomic.Bool
}

// New builds a Gate for one run.
func New(store *memory.Store, sandbox SandboxRunner, approver Approver, cfg Config) *Gate {
	if cfg.AutoApproveContexts == nil {
		cfg.AutoApproveContexts = map[types.FileContext]bool{
			types.ContextProduction: true,
			types.ContextScript:     true,
		}
	}
	return &Gate{
		store:    store,
		patterns: DefaultPatterns(),
		sandbox:  sandbox,
		approver: approver,
		cfg:      cfg,
		trust:    make(map[string]float64),
	}
}

// Compromised reports whether an integrity violation has already been
// observed in this run.
func (g *Gate) Compromised() bool { return g.compromised.Load() }

// Evaluate runs proposal through all four layers against the file at
// proposal.OriginalSpan.Path (read fresh from disk so Layer 3 observes
// the current on-disk bytes, not a stale copy) and, only on a full
// pass, applies it. project is the root that a relative span path is
// resolved against and the project handed to the sandbox for its
// working copy.
func (g *Gate) Evaluate(ctx context.Context, proposal types.FixProposal, project string) Result {
	if g.compromised.Load() {
		logging.Audit("evaluate refused: session compromised", map[string]interface{}{
			"proposal_id": proposal.ID, "fingerprint": proposal.Issue.Fingerprint,
		})
		return Result{Outcome: OutcomeSessionCompromised, Proposal: proposal}
	}

	absPath := proposal.OriginalSpan.Path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(project, absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return Result{Outcome: OutcomeIntegrityViolation, Proposal: proposal, Err: err}
	}

	postApply, err := diffutil.Apply(content, proposal.OriginalSpan, proposal.OriginalText, proposal.ReplacementText)
	if err != nil {
		g.markCompromised(proposal, "original_text mismatch before layer 1")
		return Result{Outcome: OutcomeIntegrityViolation, Proposal: proposal, Err: err}
	}

	// Snapshot the safety_score/auto_approvable pair as Layer 1 observed
	// it, so Layer 3 can detect tampering independent of whatever the
	// proposal value looks like by the time it reaches layer3 (part (b)
	// of the emergency re-check: "metadata.safety_score has not been
	// mutated since Layer 1").
	l1Score := proposal.SafetyScore
	l1AutoApprovable := proposal.AutoApprovable

	// Layer 1 — pattern scan against replacement text and the full
	// hypothetical post-apply buffer.
	if matched, rule, evidence := g.layer1(proposal, postApply); matched {
		g.recordFixFailure(ctx, proposal, "pattern_reject", rule)
		logging.Audit("layer1 reject", map[string]interface{}{
			"proposal_id": proposal.ID, "rule": rule, "evidence": evidence,
		})
		return Result{Outcome: OutcomeRejectPattern, Proposal: proposal, MatchedRule: rule, Evidence: evidence}
	}

	// Layer 2 — approval with learned trust.
	approval, autoApproved := g.layer2(ctx, proposal)
	if approval == nil {
		// No approver configured and not auto-approved: treat as deferred.
		return Result{Outcome: OutcomeApprovalDeferred, Proposal: proposal}
	}
	g.recordApproval(ctx, *approval)
	if !autoApproved {
		g.updateTrust(proposal.Issue.Type, approval.Decision == types.DecisionApprove)
	}
	switch approval.Decision {
	case types.DecisionReject:
		g.recordFixFailure(ctx, proposal, "approval_reject", approval.Reason)
		return Result{Outcome: OutcomeApprovalRejected, Proposal: proposal, Approval: approval}
	case types.DecisionDefer:
		return Result{Outcome: OutcomeApprovalDeferred, Proposal: proposal, Approval: approval}
	}

	// Layer 3 — emergency re-check, immediately before any byte is written:
	// the Layer 1 pattern scan is rerun against the final computed bytes,
	// then layer3 verifies the integrity invariants.
	if matched, rule, evidence := Scan(g.patterns, string(postApply)); matched {
		logging.Audit("layer3 pattern reject", map[string]interface{}{
			"proposal_id": proposal.ID, "rule": rule, "evidence": evidence,
		})
		return Result{Outcome: OutcomeRejectPattern, Proposal: proposal, Approval: approval, MatchedRule: rule, Evidence: evidence}
	}
	if violation := g.layer3(proposal, content, postApply, l1Score, l1AutoApprovable); violation != nil {
		g.markCompromised(proposal, violation.Error())
		return Result{Outcome: OutcomeIntegrityViolation, Proposal: proposal, Approval: approval, Err: violation}
	}

	// Layer 4 — sandbox.
	if g.sandbox != nil {
		run, err := g.sandbox.Validate(ctx, project, proposal, postApply)
		if err != nil {
			return Result{Outcome: OutcomeSandboxRejected, Proposal: proposal, Approval: approval, Err: err}
		}
		if run.Outcome != types.SandboxOK {
			g.recordSandboxFailure(ctx, proposal, run)
			logging.Audit("layer4 sandbox rejected", map[string]interface{}{
				"proposal_id": proposal.ID, "outcome": string(run.Outcome), "violations": run.Violations,
			})
			return Result{Outcome: OutcomeSandboxRejected, Proposal: proposal, Approval: approval, SandboxRun: &run}
		}
		if err := g.apply(absPath, content, postApply); err != nil {
			return Result{Outcome: OutcomeIntegrityViolation, Proposal: proposal, Approval: approval, SandboxRun: &run, Err: err}
		}
		g.recordFixSuccess(ctx, proposal)
		logging.Audit("applied", map[string]interface{}{"proposal_id": proposal.ID, "path": proposal.OriginalSpan.Path})
		return Result{Outcome: OutcomeApplied, Proposal: proposal, Approval: approval, SandboxRun: &run}
	}

	// No sandbox wired (e.g. a project with no build descriptor and no
	// language-default heuristic): apply directly once L1-L3 pass.
	if err := g.apply(absPath, content, postApply); err != nil {
		return Result{Outcome: OutcomeIntegrityViolation, Proposal: proposal, Approval: approval, Err: err}
	}
	g.recordFixSuccess(ctx, proposal)
	logging.Audit("applied", map[string]interface{}{"proposal_id": proposal.ID, "path": proposal.OriginalSpan.Path})
	return Result{Outcome: OutcomeApplied, Proposal: proposal, Approval: approval}
}

func (g *Gate) layer1(proposal types.FixProposal, postApply []byte) (bool, string, string) {
	if matched, rule, evidence := Scan(g.patterns, proposal.ReplacementText); matched {
		return true, rule, evidence
	}
	return Scan(g.patterns, string(postApply))
}

// layer2 decides auto-approval conjunction, otherwise
// defers to the configured Approver. Returns nil when neither path
// yields a decision (no approver wired and auto-approval criteria unmet).
func (g *Gate) layer2(ctx context.Context, proposal types.FixProposal) (*types.ApprovalRecord, bool) {
	if proposal.AutoApprovable && proposal.SafetyScore >= g.cfg.AutoApproveMinScore &&
		g.cfg.AutoApproveContexts[proposal.Issue.Context] {
		return &types.ApprovalRecord{
			ProposalID:     proposal.ID,
			Fingerprint:    proposal.Issue.Fingerprint,
			Decision:       types.DecisionApprove,
			Reason:         "auto-approved: safety_score >= threshold, eligible context, no L1 hit",
			UserConfidence: 1.0,
		}, true
	}
	if g.approver == nil {
		return nil, false
	}
	rec, err := g.approver.Approve(ctx, proposal)
	if err != nil {
		rec = types.ApprovalRecord{ProposalID: proposal.ID, Fingerprint: proposal.Issue.Fingerprint, Decision: types.DecisionDefer, Reason: err.Error()}
	}
	return &rec, false
}

// layer3 re-verifies every integrity invariant immediately before write:
// (a) original_text still matches current bytes at original_span, (b)
// metadata.safety_score (and auto_approvable) has not been mutated since
// Layer 1, and (c), implicitly by construction, the same proposal id
// flows through every layer in this call.
func (g *Gate) layer3(proposal types.FixProposal, content []byte, expectedPostApply []byte, l1Score uint8, l1AutoApprovable bool) error {
	recomputed, err := diffutil.Apply(content, proposal.OriginalSpan, proposal.OriginalText, proposal.ReplacementText)
	if err != nil {
		return fmt.Errorf("%w: original_text no longer matches file at span", types.ErrIntegrityViolation)
	}
	if !bytesEqual(recomputed, expectedPostApply) {
		return fmt.Errorf("%w: recomputed post-apply buffer diverged from layer 1's", types.ErrIntegrityViolation)
	}
	if proposal.SafetyScore != l1Score || proposal.AutoApprovable != l1AutoApprovable {
		return fmt.Errorf("%w: safety_score/auto_approvable mutated since layer 1", types.ErrIntegrityViolation)
	}
	if !proposal.Valid() {
		return fmt.Errorf("%w: safety_score/auto_approvable invariant no longer holds", types.ErrIntegrityViolation)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// apply writes postApply to a temp file in the same directory as path,
// fsyncs, renames over the target, and rotates a .bak alongside
// (keep-last-N per file, default N configured via cfg.BackupRetention).
func (g *Gate) apply(path string, original, postApply []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	if err := g.writeBackup(dir, base, original); err != nil {
		logging.Get(logging.CategorySafety).Warn("backup write failed for %s: %v", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+base+".argus-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(postApply); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (g *Gate) writeBackup(dir, base string, original []byte) error {
	retention := g.cfg.BackupRetention
	if retention <= 0 {
		retention = 3
	}
	ts := backupTimestamp(original)
	bakName := fmt.Sprintf("%s.%s.bak", base, ts)
	bakPath := filepath.Join(dir, bakName)
	if err := os.WriteFile(bakPath, original, 0644); err != nil {
		return err
	}
	return rotateBackups(dir, base, retention)
}

// backupTimestamp derives the backup name suffix from content rather than
// wall-clock time: Date.Now()-style sources are unavailable in this
// engine's deterministic paths, and a content hash is sufficient to
// distinguish successive backups of the same file. rotateBackups orders
// backups by file modification time, not by this suffix.
func backupTimestamp(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])[:12]
}

func rotateBackups(dir, base string, retention int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	prefix := base + "."
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			matches = append(matches, name)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, errI := os.Stat(filepath.Join(dir, matches[i]))
		fj, errJ := os.Stat(filepath.Join(dir, matches[j]))
		if errI != nil || errJ != nil || fi.ModTime().Equal(fj.ModTime()) {
			return matches[i] < matches[j]
		}
		return fi.ModTime().Before(fj.ModTime())
	})
	for len(matches) > retention {
		oldest := matches[0]
		matches = matches[1:]
		_ = os.Remove(filepath.Join(dir, oldest))
	}
	return nil
}

func (g *Gate) markCompromised(proposal types.FixProposal, reason string) {
	g.compromised.Store(true)
	logging.Audit("integrity violation: session marked compromised", map[string]interface{}{
		"proposal_id": proposal.ID, "reason": reason,
	})
}

// updateTrust folds one decision into the moving average for
// issue.Type. the update is monotone: rejections tighten
// thresholds faster than approvals loosen them, implemented as an
// asymmetric learning rate on the same exponential moving average.
func (g *Gate) updateTrust(issueType string, approved bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.trust[issueType]
	if !ok {
		cur = 0.5
	}
	observed := 0.0
	if approved {
		observed = 1.0
	}
	rate := 0.2
	if !approved {
		rate = 0.35 // rejections move the average down faster than approvals move it up
	}
	g.trust[issueType] = cur + rate*(observed-cur)
}

// TrustFor returns the current learned approval-rate estimate for an
// issue type, in [0,1]. Unseen types default to a neutral 0.5.
func (g *Gate) TrustFor(issueType string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.trust[issueType]; ok {
		return v
	}
	return 0.5
}

func (g *Gate) recordApproval(ctx context.Context, rec types.ApprovalRecord) {
	if g.store == nil {
		return
	}
	content := fmt.Sprintf("approval %s for %s: %s", rec.Decision, rec.Fingerprint, rec.Reason)
	meta := map[string]interface{}{
		"kind":            "approval_record",
		"proposal_id":     rec.ProposalID,
		"fingerprint":     rec.Fingerprint,
		"decision":        string(rec.Decision),
		"user_confidence": rec.UserConfidence,
	}
	if _, err := g.store.StoreMemory(ctx, types.NamespaceGlobal, content, meta); err != nil {
		logging.Get(logging.CategorySafety).Warn("failed to persist approval record: %v", err)
	}
}

func (g *Gate) recordFixFailure(ctx context.Context, proposal types.FixProposal, reason, detail string) {
	if g.store == nil {
		return
	}
	content := fmt.Sprintf("fix failure for %s: %s (%s)", proposal.Issue.Fingerprint, reason, detail)
	meta := map[string]interface{}{
		"kind":        string(types.PatternFixFailure),
		"fingerprint": proposal.Issue.Fingerprint,
		"proposal_id": proposal.ID,
		"reason":      reason,
		"detail":      detail,
	}
	if _, err := g.store.StoreMemory(ctx, types.NamespaceGlobal, content, meta); err != nil {
		logging.Get(logging.CategorySafety).Warn("failed to persist fix failure: %v", err)
	}
}

func (g *Gate) recordFixSuccess(ctx context.Context, proposal types.FixProposal) {
	if g.store == nil {
		return
	}
	content := fmt.Sprintf("fix applied for %s", proposal.Issue.Fingerprint)
	meta := map[string]interface{}{
		"kind":        string(types.PatternFixSuccess),
		"fingerprint": proposal.Issue.Fingerprint,
		"proposal_id": proposal.ID,
		"type":        proposal.Issue.Type,
	}
	if _, err := g.store.StoreMemory(ctx, types.NamespaceGlobal, content, meta); err != nil {
		logging.Get(logging.CategorySafety).Warn("failed to persist fix success: %v", err)
	}
}

func (g *Gate) recordSandboxFailure(ctx context.Context, proposal types.FixProposal, run types.SandboxRun) {
	if g.store == nil {
		return
	}
	content := fmt.Sprintf("sandbox %s for %s", run.Outcome, proposal.Issue.Fingerprint)
	meta := map[string]interface{}{
		"kind":        string(types.PatternFixFailure),
		"fingerprint": proposal.Issue.Fingerprint,
		"proposal_id": proposal.ID,
		"outcome":     string(run.Outcome),
		"untrusted":   run.Outcome == types.SandboxSecurityViolation,
	}
	if _, err := g.store.StoreMemory(ctx, types.NamespaceGlobal, content, meta); err != nil {
		logging.Get(logging.CategorySafety).Warn("failed to persist sandbox failure: %v", err)
	}
}
