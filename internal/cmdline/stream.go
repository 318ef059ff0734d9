package cmdline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/cortexos/cortexos/internal/bus"
	"github.com/cortexos/cortexos/internal/engine"
	"github.com/cortexos/cortexos/internal/webhook"
)

// runRegistry tracks the StreamController of every in-flight webhook-
// triggered run so /stream can relay SSE for a given executionId.
type runRegistry struct {
	mu      sync.Mutex
	streams map[string]*bus.StreamController
}

func newRunRegistry() *runRegistry {
	return &runRegistry{streams: make(map[string]*bus.StreamController)}
}

func (r *runRegistry) add(id string, sc *bus.StreamController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[id] = sc
}

func (r *runRegistry) get(id string) (*bus.StreamController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.streams[id]
	return sc, ok
}

func (r *runRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
}

type webhookPayload struct {
	Prompt  string `json:"prompt"`
	WorkDir string `json:"workDir"`
}

// newStreamCommand serves the two peripheral HTTP surfaces named in
// spec §6: an SSE event stream per execution, and the webhook
// receiver that starts one. Each accepted webhook call spins up its
// own Engine and StreamController (engine.Execute always closes its
// Config.Stream once it returns). The run's executionId is the
// webhookId the receiver returns, and its stream is registered before
// that response is written, so a client polling
// /stream?id=<webhookId> immediately after the webhook response sees
// that run's events.
func newStreamCommand(flags *globalFlags) *cobra.Command {
	var addr, webhookPath, webhookSecret string

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Serve an SSE event stream and a webhook receiver that starts runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build(flags)
			if err != nil {
				os.Exit(3)
			}
			defer d.shutdown()

			if webhookSecret == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "refusing to serve: --webhook-secret is required")
				os.Exit(3)
			}

			registry := newRunRegistry()

			mux := http.NewServeMux()
			mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
				id := r.URL.Query().Get("id")
				sc, ok := registry.get(id)
				if !ok {
					http.NotFound(w, r)
					return
				}
				sc.ServeHTTP(w, r)
			})

			receiver := webhook.New(webhookPath, webhookSecret, func(webhookID string, body []byte) error {
				var payload webhookPayload
				if err := json.Unmarshal(body, &payload); err != nil {
					return err
				}
				if payload.Prompt == "" {
					return fmt.Errorf("webhook payload missing prompt")
				}
				if payload.WorkDir == "" {
					payload.WorkDir, _ = os.Getwd()
				}
				stream := bus.NewStreamController(64)
				registry.add(webhookID, stream)
				go d.startRun(registry, webhookID, stream, payload.Prompt, payload.WorkDir)
				return nil
			})
			receiver.Logger = d.logger
			mux.Handle(webhookPath, receiver)

			d.logger.Infof("serving stream+webhook on %s (webhook path %s)", addr, webhookPath)
			return http.ListenAndServe(addr, mux)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8088", "address to listen on")
	cmd.Flags().StringVar(&webhookPath, "webhook-path", "/hooks/cortexos", "path the webhook receiver listens on")
	cmd.Flags().StringVar(&webhookSecret, "webhook-secret", "", "HMAC-SHA256 secret the webhook receiver verifies against (required)")
	return cmd
}

// startRun builds and executes one engine run on stream, which the
// caller has already registered under executionID, and unregisters it
// once Execute returns.
func (d *deps) startRun(registry *runRegistry, executionID string, stream *bus.StreamController, prompt, workDir string) {
	defer registry.remove(executionID)

	eng := d.newEngine(stream)
	defer func() { _ = eng.Shutdown(context.Background()) }()

	result, err := eng.Execute(context.Background(), prompt, engine.Options{ExecutionID: executionID, BaseWorkingDir: workDir})
	if err != nil {
		d.logger.Errorf("webhook-triggered run %s failed: %v", executionID, err)
		return
	}
	d.logger.Event("run:complete", fmt.Sprintf("%s success=%v", executionID, result.Success))
}
