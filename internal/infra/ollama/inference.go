package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

// Inference runs vision calls against a local ollama instance. The model is
// an exclusive, GPU-bound resource: the agent handle is created on the first
// Acquire and dropped when the last reference is released, and calls are
// serialized through a single mutex.
type Inference struct {
	baseURL  string
	port     int
	model    string
	logger   *zap.Logger
	agentLog logr.Logger

	mu       sync.Mutex
	refCount int
	agent    *agent.Agent
}

type Config struct {
	BaseURL string
	Port    int
	Model   string
}

func NewInference(cfg Config, logger *zap.Logger) *Inference {
	// The agent-api provider wants a logr logger; bridge it from a tint
	// slog handler and keep it off the structured log stream.
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: "15:04:05",
	})

	return &Inference{
		baseURL:  cfg.BaseURL,
		port:     cfg.Port,
		model:    cfg.Model,
		logger:   logger,
		agentLog: logr.FromSlogHandler(handler),
	}
}

// Acquire takes a reference on the model handle, loading it if this is the
// first reference.
func (i *Inference) Acquire(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.agent == nil {
		provider := ollama.NewProvider(&ollama.ProviderOpts{
			Logger:  &i.agentLog,
			BaseURL: i.baseURL,
			Port:    i.port,
		})
		if err := provider.UseModel(ctx, &core.Model{ID: i.model}); err != nil {
			return fmt.Errorf("select vision model %s: %w", i.model, err)
		}

		a, err := agent.NewAgent(
			bootstrap.WithProvider(provider),
			bootstrap.WithLogger(&i.agentLog),
			bootstrap.WithSystemPrompt("You are a visual analysis assistant for mobile UI tutorials. "+
				"Follow the instructions in each request exactly."),
		)
		if err != nil {
			return fmt.Errorf("create vision agent: %w", err)
		}
		i.agent = a
		i.logger.Info("vision model handle loaded", zap.String("model", i.model))
	}
	i.refCount++
	return nil
}

// Release drops one reference; the handle is discarded when the count hits
// zero so the next run reloads it fresh.
func (i *Inference) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.refCount == 0 {
		return
	}
	i.refCount--
	if i.refCount == 0 {
		i.agent = nil
		i.logger.Info("vision model handle released", zap.String("model", i.model))
	}
}

// Infer runs one synchronous vision call for one frame. The mutex serializes
// concurrent synthesis runs onto the single model instance.
func (i *Inference) Infer(ctx context.Context, imagePath string, prompt string) (string, error) {
	i.mu.Lock()
	a := i.agent
	i.mu.Unlock()
	if a == nil {
		return "", fmt.Errorf("inference service not acquired")
	}

	// agent.WithImagePath panics on an unreadable file; stat first so a
	// missing frame surfaces as a per-frame skip instead of a crash.
	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("frame image: %w", err)
	}

	response, err := a.Run(ctx,
		agent.WithInput(prompt),
		agent.WithImagePath(imagePath),
	)
	if err != nil {
		return "", fmt.Errorf("vision inference: %w", err)
	}
	if response == nil || len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	return response.Messages[len(response.Messages)-1].Content, nil
}
