// Package types is the shared vocabulary for argus: every other package
// depends on these definitions instead of holding back-pointers into each
// other's internals (arena+id pattern — components exchange opaque ids,
// never pointers to Memory Engine rows or Safety Gate state).
package types

import "time"

// Severity ranks an Issue's importance, from a fixed rubric applied by
// every analyzer: security defects default to high+, correctness to
// medium+, style to low or cosmetic.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityCosmetic Severity = "cosmetic"
)

// FileContext classifies a path the way the Context Analyzer (C5) does.
type FileContext string

const (
	ContextProduction FileContext = "production"
	ContextTest       FileContext = "test"
	ContextDemo       FileContext = "demo"
	ContextConfig     FileContext = "config"
	ContextGenerated  FileContext = "generated"
	ContextVendored   FileContext = "vendored"
	ContextScript     FileContext = "script"
)

// Well-known namespace names. Project namespaces are arbitrary strings
// (the project's id/hash) and so have no constant here.
const (
	NamespaceGlobal        = "global"
	NamespaceTraining      = "training"
	NamespaceFalsePositive = "false-positives"
)

// Memory is the engine's single persisted unit: a namespaced row with
// optional embedding. (namespace,id) is unique; len(embedding) == D when
// present; updated_at is never before created_at.
type Memory struct {
	ID        uint64                 `json:"id"`
	Namespace string                 `json:"namespace"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// SearchType tags how a result set entry was found, so callers can never
// mistake a degraded keyword-only hit for a semantic one.
type SearchType string

const (
	SearchTypeID       SearchType = "id"
	SearchTypeKeyword  SearchType = "keyword"
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeHybrid   SearchType = "hybrid"
)

// SearchResult is one ranked hit from a Memory Engine query.
type SearchResult struct {
	ID         uint64                 `json:"id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Score      float64                `json:"score"`
	SearchType SearchType             `json:"search_type"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// IndexStatus is the health of the ANN index backing semantic search.
type IndexStatus string

const (
	IndexOK          IndexStatus = "ok"
	IndexRebuilding  IndexStatus = "rebuilding"
	IndexUnavailable IndexStatus = "unavailable"
)

// DBStatus is the health of the underlying row store.
type DBStatus string

const (
	DBOk       DBStatus = "ok"
	DBDegraded DBStatus = "degraded"
	DBDown     DBStatus = "down"
)

// Health is the Memory Engine's self-report, used by the CLI stats verb
// and the Prometheus gauges.
type Health struct {
	DB          DBStatus    `json:"db"`
	Index       IndexStatus `json:"index"`
	MemoryCount int64       `json:"memory_count"`
}

// Issue is a single finding from a Language Analyzer, annotated by the
// Context Analyzer and the Orchestrator (fingerprint) before it leaves C4.
type Issue struct {
	Type        string      `json:"type"`
	Severity    Severity    `json:"severity"`
	File        string      `json:"file"`
	Line        *uint32     `json:"line,omitempty"`
	Column      *uint32     `json:"column,omitempty"`
	Description string      `json:"description"`
	Suggestion  string      `json:"suggestion,omitempty"`
	Context     FileContext `json:"context"`
	Fingerprint string      `json:"fingerprint"`
	// Metadata carries analyzer-specific detail a fix recipe may need
	// (e.g. the matched node's byte span) without widening Issue itself.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Span identifies a contiguous byte range within one file.
type Span struct {
	Path string `json:"path"`
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
	Len  uint32 `json:"len"`
}

// FixProposal is a single-span textual replacement derived from an Issue.
// auto_approvable implies safety_score >= 98 and severity in {cosmetic, low}.
type FixProposal struct {
	ID              string `json:"id"`
	Issue           Issue  `json:"issue"`
	OriginalSpan    Span   `json:"original_span"`
	OriginalText    string `json:"original_text"`
	ReplacementText string `json:"replacement_text"`
	Rationale       string `json:"rationale"`
	SafetyScore     uint8  `json:"safety_score"`
	AutoApprovable  bool   `json:"auto_approvable"`
}

// Valid reports the auto_approvable invariant from
func (p FixProposal) Valid() bool {
	if !p.AutoApprovable {
		return true
	}
	if p.SafetyScore < 98 {
		return false
	}
	switch p.Issue.Severity {
	case SeverityCosmetic, SeverityLow:
		return true
	default:
		return false
	}
}

// Decision is a human or learned-trust verdict on a FixProposal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionDefer   Decision = "defer"
)

// ApprovalRecord is Layer 2's output, consumed by C6 learning.
type ApprovalRecord struct {
	ProposalID     string    `json:"proposal_id"`
	Fingerprint    string    `json:"fingerprint"`
	Decision       Decision  `json:"decision"`
	Reason         string    `json:"reason,omitempty"`
	UserConfidence float32   `json:"user_confidence"`
	Timestamp      time.Time `json:"ts"`
}

// PatternKind enumerates the metadata.kind values a learned Pattern
// Memory may carry (Pattern itself is just a Memory).
type PatternKind string

const (
	PatternIssue      PatternKind = "issue_pattern"
	PatternFP         PatternKind = "fp_pattern"
	PatternFixSuccess PatternKind = "fix_success"
	PatternFixFailure PatternKind = "fix_failure"
	PatternConnection PatternKind = "connection"
)

// CycleRecord is the Cycle Tracker's comparison of two successive scans
// of the same project.
type CycleRecord struct {
	Project         string    `json:"project"`
	PrevScanID      string    `json:"prev_scan_id"`
	CurScanID       string    `json:"cur_scan_id"`
	Resolved        []string  `json:"resolved"`
	New             []string  `json:"new"`
	ManualFixes     []string  `json:"manual_fixes"`
	AutomatedFixes  []string  `json:"automated_fixes"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
}

// SandboxOutcome enumerates C9's result categories. Only OK passes the gate.
type SandboxOutcome string

const (
	SandboxOK                SandboxOutcome = "ok"
	SandboxBuildFailed       SandboxOutcome = "build_failed"
	SandboxTestFailed        SandboxOutcome = "test_failed"
	SandboxResourceExceeded  SandboxOutcome = "resource_exceeded"
	SandboxSecurityViolation SandboxOutcome = "security_violation"
	SandboxTimeout           SandboxOutcome = "timeout"
)

// SandboxRun is ephemeral; a summary is persisted as Memory only on
// failure or policy miss.
type SandboxRun struct {
	ProposalID string         `json:"proposal_id"`
	Outcome    SandboxOutcome `json:"outcome"`
	Violations []string       `json:"violations,omitempty"`
	WallMS     int64          `json:"wall_ms"`
	CPUMS      int64          `json:"cpu_ms"`
	RSSPeak    int64          `json:"rss_peak"`
}

// ScanResult is the Orchestrator's output: an ordered issue list plus a
// summary histogram, path-sorted then (line,column,type)-sorted within a file.
type ScanResult struct {
	ScanID    string           `json:"scan_id"`
	Project   string           `json:"project"`
	Issues    []Issue          `json:"issues"`
	Histogram map[string]int   `json:"histogram"`
	Skipped   map[string]string `json:"skipped,omitempty"` // path -> reason
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
}
