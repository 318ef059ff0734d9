package quality

import (
	"context"

	"github.com/cortexos/cortexos/internal/cortexerr"
)

// GateConfig pairs a Gate with whether its failure stops the run.
type GateConfig struct {
	Gate  Gate
	Fatal bool
}

// Verifier runs a configured, ordered list of gates, stopping at the
// first fatal gate's failure and otherwise collecting every result
// (spec §4.D).
type Verifier struct {
	Gates []GateConfig
}

func NewVerifier(gates ...GateConfig) *Verifier {
	return &Verifier{Gates: gates}
}

// Report is the outcome of a full verifier pass.
type Report struct {
	Results   []Result
	Passed    bool
	StoppedAt string // name of the fatal gate that halted the run, if any
}

func (v *Verifier) Verify(ctx context.Context, qc Context) (Report, error) {
	report := Report{Passed: true}

	for _, gc := range v.Gates {
		select {
		case <-ctx.Done():
			return report, cortexerr.New(cortexerr.Cancelled, "quality", ctx.Err().Error())
		default:
		}

		result, err := gc.Gate.Run(ctx, qc)
		if err != nil {
			return report, cortexerr.Wrap(cortexerr.Quality, gc.Gate.Name(), err)
		}

		report.Results = append(report.Results, result)
		if !result.Passed {
			report.Passed = false
			if gc.Fatal {
				report.StoppedAt = gc.Gate.Name()
				return report, nil
			}
		}
	}

	return report, nil
}

// AllIssues flattens every issue across a report's results.
func (r Report) AllIssues() []Issue {
	var out []Issue
	for _, res := range r.Results {
		out = append(out, res.Issues...)
	}
	return out
}
