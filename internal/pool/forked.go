package pool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/cortexos/cortexos/internal/agent"
	"github.com/cortexos/cortexos/internal/cortexerr"
	"github.com/cortexos/cortexos/internal/provider"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// ForkedConfig configures the forked-worker execution mode (spec
// §4.G): a new isolated worker process per task, message-framed IPC
// over newline-delimited JSON on stdin/stdout.
type ForkedConfig struct {
	// Binary is the executable to launch per task; Args are passed
	// before the worker-mode sentinel flag. Defaults to os.Args[0].
	Binary string
	Args   []string
}

// wireMessage is the envelope every IPC message is framed in.
type wireMessage struct {
	Type string          `json:"type"` // ready, execute, progress, result, error
	Data json.RawMessage `json:"data,omitempty"`
}

type executePayload struct {
	TaskID      string   `json:"task"`
	Role        string   `json:"role"`
	Prompt      string   `json:"prompt"`
	WorkingDir  string   `json:"workingDir"`
	ToolNames   []string `json:"toolNames"`
	Temperature float64  `json:"temperature"`
	Model       string   `json:"model"`
}

type progressPayload struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
}

type resultPayload struct {
	Success      bool               `json:"success"`
	Response     string             `json:"response"`
	FileChanges  []agent.FileChange `json:"fileChanges"`
	InputTokens  int64              `json:"inputTokens"`
	OutputTokens int64              `json:"outputTokens"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func writeMessage(w io.Writer, msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env := wireMessage{Type: msgType, Data: raw}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// runForked launches a fresh worker process for task, sends it an
// execute message, and waits for a terminal result/error message or
// ctx's per-task timeout (which sends SIGTERM, spec §4.G).
func (p *Pool) runForked(ctx context.Context, task Task) (agent.Result, error) {
	binary := p.cfg.Forked.Binary
	if binary == "" {
		binary = os.Args[0]
	}
	args := append(append([]string{}, p.cfg.Forked.Args...), "--pool-worker")

	cmd := exec.CommandContext(ctx, binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return agent.Result{}, fmt.Errorf("open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return agent.Result{}, fmt.Errorf("open worker stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return agent.Result{}, fmt.Errorf("start worker: %w", err)
	}

	done := make(chan struct{})
	var killOnce sync.Once
	go func() {
		select {
		case <-ctx.Done():
			killOnce.Do(func() {
				if cmd.Process != nil {
					_ = cmd.Process.Signal(syscall.SIGTERM)
				}
			})
		case <-done:
		}
	}()
	defer close(done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	// Wait for the worker's ready handshake (transport-only, never
	// user-visible progress — spec §9 Open Question 3) before sending work.
	if !scanner.Scan() {
		return agent.Result{}, fmt.Errorf("worker exited before ready handshake")
	}
	var readyEnv wireMessage
	if err := json.Unmarshal(scanner.Bytes(), &readyEnv); err != nil || readyEnv.Type != "ready" {
		return agent.Result{}, fmt.Errorf("worker did not send ready handshake")
	}

	execMsg := executePayload{
		TaskID: task.ID, Role: string(task.Role), Prompt: task.Prompt,
		WorkingDir: task.WorkingDir, ToolNames: task.ToolNames,
		Temperature: task.Temperature, Model: task.Model,
	}
	if err := writeMessage(stdin, "execute", execMsg); err != nil {
		return agent.Result{}, fmt.Errorf("send execute message: %w", err)
	}
	_ = stdin.Close()

	for scanner.Scan() {
		var env wireMessage
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			continue
		}
		switch env.Type {
		case "progress":
			// Progress is transport-only telemetry; no subscriber hook
			// is wired at this layer (the swarm coordinator relays
			// wave-level progress via the event bus instead).
		case "result":
			var rp resultPayload
			if err := json.Unmarshal(env.Data, &rp); err != nil {
				return agent.Result{}, fmt.Errorf("decode result message: %w", err)
			}
			_ = cmd.Wait()
			return agent.Result{
				Success:      rp.Success,
				Response:     rp.Response,
				FileChanges:  rp.FileChanges,
				InputTokens:  rp.InputTokens,
				OutputTokens: rp.OutputTokens,
			}, nil
		case "error":
			var ep errorPayload
			_ = json.Unmarshal(env.Data, &ep)
			_ = cmd.Wait()
			return agent.Result{Success: false, Error: cortexerr.New(cortexerr.AgentInvalidResponse, "pool", ep.Message)}, nil
		}
	}

	_ = cmd.Wait()
	if ctx.Err() != nil {
		return agent.Result{}, cortexerr.New(cortexerr.Cancelled, "pool", "worker killed: "+ctx.Err().Error())
	}
	return agent.Result{}, fmt.Errorf("worker closed stdout without a result")
}

// RunWorker is the forked-worker entry point: it is invoked by
// cmd/cortexos when launched with --pool-worker. It reads one execute
// message from stdin, runs an Agent in-process, and writes back a
// result or error message, preceded by a ready handshake.
func RunWorker(stdin io.Reader, stdout io.Writer, prov provider.Provider, tools *toolregistry.Executor) error {
	if err := writeMessage(stdout, "ready", struct{}{}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		return fmt.Errorf("no execute message received")
	}

	var env wireMessage
	if err := json.Unmarshal(scanner.Bytes(), &env); err != nil || env.Type != "execute" {
		return writeMessage(stdout, "error", errorPayload{Message: "expected execute message"})
	}
	var ep executePayload
	if err := json.Unmarshal(env.Data, &ep); err != nil {
		return writeMessage(stdout, "error", errorPayload{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTaskTimeout)
	defer cancel()

	a := agent.New(agent.Config{
		Role:        agent.Role(ep.Role),
		Provider:    prov,
		Tools:       tools,
		ToolNames:   ep.ToolNames,
		Temperature: ep.Temperature,
		Model:       ep.Model,
		ToolContext: toolregistry.ToolContext{WorkingDir: ep.WorkingDir},
	}, ep.Prompt)

	_ = writeMessage(stdout, "progress", progressPayload{Progress: 0, Status: "running"})
	result := a.Run(ctx)
	_ = writeMessage(stdout, "progress", progressPayload{Progress: 1, Status: "done"})

	if result.Error != nil && !result.Success {
		return writeMessage(stdout, "error", errorPayload{Message: result.Error.Error()})
	}
	return writeMessage(stdout, "result", resultPayload{
		Success: result.Success, Response: result.Response, FileChanges: result.FileChanges,
		InputTokens: result.InputTokens, OutputTokens: result.OutputTokens,
	})
}
