package crowdsafe

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	Cs "github.com/maroda/crowdsafe/server"
)

// PipelineSupervisor owns the goroutine running the orchestrator
// so a display can start it, stop it, and wait on its result
type PipelineSupervisor struct {
	Orch   *Cs.Orchestrator
	WG     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewPipelineSupervisor(o *Cs.Orchestrator) *PipelineSupervisor {
	return &PipelineSupervisor{Orch: o}
}

// Start the pipeline, a second Start without Stop is ignored
func (p *PipelineSupervisor) Start(ctx context.Context) {
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	p.WG.Add(1)
	go func() {
		defer p.WG.Done()
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in pipeline", slog.Any("panic", r))
				slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
				p.err = fmt.Errorf("pipeline panic: %v", r)
			}
		}()

		p.err = p.Orch.Run(ctx)
	}()
}

// Done is closed when the pipeline returns
func (p *PipelineSupervisor) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pipeline returns and reports its error
func (p *PipelineSupervisor) Wait() error {
	if p.done == nil {
		return nil
	}
	p.WG.Wait()
	return p.err
}

// Stop cancels the pipeline and waits for it
func (p *PipelineSupervisor) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.Wait()
}
