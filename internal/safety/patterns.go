package safety

import "regexp"

// Pattern is one read-only rule in the Layer 1 / Layer 3 pattern library.
// Grounded on a prior command/string matching used throughout
// internal/tools/shell for destructive-command detection, generalized
// into a named, regex-driven rule table.
type Pattern struct {
	Name        string
	Description string
	re          *regexp.Regexp
}

func mustPattern(name, description, expr string) Pattern {
	return Pattern{Name: name, Description: description, re: regexp.MustCompile(expr)}
}

// DefaultPatterns is the conservative rule library applied to a
// proposal's replacement text and the full hypothetical post-apply
// buffer ( Layer 1).
func DefaultPatterns() []Pattern {
	return []Pattern{
		mustPattern("shell-destructive",
			"shell execution of a destructive command",
			`(?i)os\.system\s*\(|exec\.Command\s*\(\s*"(?:rm|sh|bash)"|subprocess\.(?:call|run|Popen)\s*\(.*rm\s+-rf`),
		mustPattern("shell-exec-primitive",
			"general shell/process execution primitive",
			`(?i)\bos/exec\b|\bsubprocess\.(?:call|run|Popen)\b|\bos\.system\s*\(`),
		mustPattern("deserialize-untrusted",
			"deserializer of untrusted data",
			`(?i)\bpickle\.loads?\s*\(|\byaml\.unsafe_load\s*\(|\bmarshal\.loads?\s*\(`),
		mustPattern("auth-bypass",
			"authentication/authorization bypass token",
			`(?i)skip_auth|bypass_auth|disable_verification|verify\s*=\s*False|InsecureSkipVerify\s*:\s*true`),
		mustPattern("hardcoded-credential",
			"hard-coded credential or secret",
			`(?i)(password|secret|api[_-]?key|token)\s*[:=]\s*["'][^"']{4,}["']`),
		mustPattern("network-io",
			"network I/O introduced by the proposed change",
			`(?i)\bnet/http\b|\brequests\.(?:get|post|put)\s*\(|\bnet\.Dial\s*\(|\burllib`),
		mustPattern("privilege-elevation",
			"privilege elevation",
			`(?i)\bsudo\b|\bsetuid\s*\(|\bos\.Setuid\s*\(|\bSeteuid\s*\(`),
		mustPattern("file-escape-root",
			"file operation targeting a path outside the project root",
			`(?i)(open|os\.remove|os\.Open|ioutil\.WriteFile|WriteFile)\s*\(\s*["']\/(?:etc|root|home|var)\/`),
	}
}

// Scan runs every pattern against text, returning the first match (rule
// name + the matched substring as evidence). Matches are logged by the
// caller, never by Scan itself, so audit entries carry full proposal
// context.
func Scan(patterns []Pattern, text string) (matched bool, ruleName string, evidence string) {
	for _, p := range patterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			return true, p.Name, text[loc[0]:loc[1]]
		}
	}
	return false, "", ""
}
