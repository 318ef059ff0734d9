package cmdline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexos/cortexos/internal/cortexerr"
	"github.com/cortexos/cortexos/internal/engine"
)

func TestExitCodeForSuccess(t *testing.T) {
	assert.Equal(t, 0, exitCodeFor(engine.Result{Success: true}, nil))
}

func TestExitCodeForBudgetExceededTakesPrecedence(t *testing.T) {
	err := cortexerr.New(cortexerr.Budget, "cost", "per-run budget exceeded")
	assert.Equal(t, 2, exitCodeFor(engine.Result{Success: false}, err))
}

func TestExitCodeForQualityNotMet(t *testing.T) {
	err := cortexerr.New(cortexerr.Internal, "pipeline", "execution completed with failures")
	assert.Equal(t, 1, exitCodeFor(engine.Result{Success: false}, err))
}

func TestExitCodeForSystemError(t *testing.T) {
	assert.Equal(t, 3, exitCodeFor(engine.Result{Success: true}, errors.New("boom")))
}
