package quality

import "context"

// Remediation is the outcome of a verify → auto-fix → re-verify cycle
// (spec §4.D). A second failure after auto-fix is terminal: nothing
// in this package retries further. Reflexion (spec §4.J) is a
// separate, agent-level remediation path the engine invokes on a
// terminal Remediation — this package has no hook into it, since
// reflexion needs the failed AgentResult and a provider, neither of
// which a Gate has access to.
type Remediation struct {
	Initial  Report
	Fixed    *FixReport
	Final    Report
	Terminal bool // true if the post-fix re-verify still failed (or no fix ran)
}

// Remediate runs the verifier once; if it fails, applies the
// auto-fixer and re-verifies exactly once more.
func Remediate(ctx context.Context, verifier *Verifier, fixer *AutoFixer, qc Context) (Remediation, error) {
	initial, err := verifier.Verify(ctx, qc)
	if err != nil {
		return Remediation{Initial: initial}, err
	}
	if initial.Passed {
		return Remediation{Initial: initial, Final: initial, Terminal: false}, nil
	}

	fixed, err := fixer.Fix(ctx, qc, initial)
	if err != nil {
		return Remediation{Initial: initial, Terminal: true}, err
	}

	final, err := verifier.Verify(ctx, qc)
	if err != nil {
		return Remediation{Initial: initial, Fixed: &fixed, Final: final}, err
	}

	return Remediation{
		Initial:  initial,
		Fixed:    &fixed,
		Final:    final,
		Terminal: !final.Passed,
	}, nil
}
