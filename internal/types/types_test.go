package types

import "testing"

func TestFixProposalValid(t *testing.T) {
	cases := []struct {
		name string
		p    FixProposal
		want bool
	}{
		{
			name: "non-auto-approvable always valid",
			p:    FixProposal{AutoApprovable: false, SafetyScore: 0, Issue: Issue{Severity: SeverityCritical}},
			want: true,
		},
		{
			name: "auto-approvable with low score rejected",
			p:    FixProposal{AutoApprovable: true, SafetyScore: 97, Issue: Issue{Severity: SeverityCosmetic}},
			want: false,
		},
		{
			name: "auto-approvable with wrong severity rejected",
			p:    FixProposal{AutoApprovable: true, SafetyScore: 99, Issue: Issue{Severity: SeverityMedium}},
			want: false,
		},
		{
			name: "auto-approvable cosmetic high score accepted",
			p:    FixProposal{AutoApprovable: true, SafetyScore: 98, Issue: Issue{Severity: SeverityCosmetic}},
			want: true,
		},
		{
			name: "auto-approvable low severity high score accepted",
			p:    FixProposal{AutoApprovable: true, SafetyScore: 100, Issue: Issue{Severity: SeverityLow}},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrKindString(t *testing.T) {
	if KindInput.String() != "input" {
		t.Errorf("expected 'input', got %q", KindInput.String())
	}
	if KindFatal.String() != "fatal" {
		t.Errorf("expected 'fatal', got %q", KindFatal.String())
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(KindMemory, "memory.store", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestKindOfUnwrappedDefaultsFatal(t *testing.T) {
	if got := KindOf(ErrStoreFailed); got != KindFatal {
		t.Errorf("expected KindFatal for unwrapped error, got %v", got)
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := Wrap(KindSafetyRefusal, "safety.layer1", ErrRejectPattern)
	if got := KindOf(err); got != KindSafetyRefusal {
		t.Errorf("expected KindSafetyRefusal, got %v", got)
	}
}

func TestNewProposalIDFormat(t *testing.T) {
	id := NewProposalID()
	if len(id) < len("proposal/") {
		t.Fatalf("unexpected id: %s", id)
	}
	if id[:9] != "proposal/" {
		t.Errorf("expected proposal/ prefix, got %s", id)
	}
}
