package media

import (
	"context"
	"errors"
	"log"
	"os/exec"
	"sync"
)

// Prober reports whether an optional external tool can be used.
type Prober interface {
	Available(ctx context.Context) bool
}

// ToolProbe checks once per process whether a binary is installed. The
// answer is memoized; installing the tool later needs a restart.
type ToolProbe struct {
	Name string

	lookPath func(string) (string, error)
	runner   CommandRunner

	once      sync.Once
	available bool
}

func NewToolProbe(name string, runner CommandRunner) *ToolProbe {
	return &ToolProbe{Name: name, lookPath: exec.LookPath, runner: runner}
}

func (p *ToolProbe) Available(ctx context.Context) bool {
	p.once.Do(func() {
		p.available = p.probe(ctx)
		if p.available {
			log.Printf("probe: %s is available", p.Name)
		} else {
			log.Printf("probe: %s not found, related strategies are disabled", p.Name)
		}
	})
	return p.available
}

func (p *ToolProbe) probe(ctx context.Context) bool {
	if p.lookPath != nil {
		if _, err := p.lookPath(p.Name); err == nil {
			return true
		}
	}
	if p.runner == nil {
		return false
	}
	// run it bare; usage output with a non-zero exit still proves it exists
	_, err := p.runner.Run(ctx, p.Name)
	if err == nil {
		return true
	}
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// StaticProbe is a Prober with a fixed answer.
type StaticProbe bool

func (s StaticProbe) Available(context.Context) bool { return bool(s) }
