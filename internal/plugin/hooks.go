package plugin

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/posereps/internal/metrics"
	"github.com/ayusman/posereps/internal/observability"
	"github.com/ayusman/posereps/internal/session"
)

// RepHooks runs every plugin handling ActionRep when a rep is counted. Runs
// happen in the background and never affect the counter.
type RepHooks struct {
	manager  *Manager
	executor *Executor
	metrics  *metrics.Metrics
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewRepHooks creates RepHooks. met may be nil.
func NewRepHooks(manager *Manager, executor *Executor, met *metrics.Metrics, logger *zap.Logger) *RepHooks {
	return &RepHooks{
		manager:  manager,
		executor: executor,
		metrics:  met,
		logger:   observability.OrNop(logger).Named("hooks"),
	}
}

// Handle starts one background run per matching plugin. It has the signature
// session.Manager.OnRep expects.
func (h *RepHooks) Handle(ev session.RepEvent) {
	for _, p := range h.manager.Handlers(ActionRep) {
		if every := p.Manifest.Every; every > 1 && ev.Count%every != 0 {
			continue
		}

		req := &Request{
			Action:      ActionRep,
			SessionID:   ev.SessionID,
			Count:       ev.Count,
			Label:       ev.Label,
			Probability: ev.Probability,
			AtMs:        ev.At.Milliseconds(),
			Config:      p.Manifest.Config,
		}

		h.wg.Add(1)
		go h.run(p, req)
	}
}

func (h *RepHooks) run(p *Plugin, req *Request) {
	defer h.wg.Done()

	resp, err := h.executor.Execute(context.Background(), p, req)
	if err == nil && !resp.Success {
		h.logger.Warn("Rep hook reported failure",
			zap.String("plugin", p.Manifest.Name),
			zap.String("error", resp.Error))
		h.failed()
		return
	}
	if err != nil {
		h.logger.Warn("Rep hook failed", zap.String("plugin", p.Manifest.Name), zap.Error(err))
		h.failed()
		return
	}
	h.logger.Debug("Rep hook ran", zap.String("plugin", p.Manifest.Name), zap.Int("count", req.Count))
}

func (h *RepHooks) failed() {
	if h.metrics != nil {
		h.metrics.HookErrors.Add(1)
	}
}

// Wait blocks until every started run has finished.
func (h *RepHooks) Wait() {
	h.wg.Wait()
}
