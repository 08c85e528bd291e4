package hooks

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Result is the outcome of running one hook point: its handlers and script
// combined (spec.md §4.13: in-process handlers are "(ctx) → {success,
// stderr?}").
type Result struct {
	Success bool
	Stderr  string
}

// HandlerFunc is an in-process hook handler.
type HandlerFunc func(ctx context.Context, args []string) Result

// Config controls one repository's hook behavior.
type Config struct {
	// Enabled is the per-repository hook enable flag.
	Enabled bool
	// ScriptsDir holds external scripts named after Point.String(), e.g.
	// "<ScriptsDir>/pre-commit".
	ScriptsDir string
	// Timeout bounds each external script invocation; zero means no limit.
	Timeout time.Duration
}

// Dispatcher runs registered in-process handlers then an external script
// for each hook point, in order.
type Dispatcher struct {
	config   Config
	handlers map[Point][]HandlerFunc
}

// NewDispatcher returns a Dispatcher for the given repository config.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{config: cfg, handlers: make(map[Point][]HandlerFunc)}
}

// Register appends an in-process handler to run at point, after any
// handlers already registered there.
func (d *Dispatcher) Register(point Point, h HandlerFunc) {
	d.handlers[point] = append(d.handlers[point], h)
}

// Run executes point's in-process handlers, then its external script if
// one is installed, stopping at the first failure for abort-capable
// points. bypass skips the point entirely (per-invocation bypass flag);
// a disabled Config (per-repository enable flag) does the same.
func (d *Dispatcher) Run(ctx context.Context, point Point, args []string, bypass bool) (Result, error) {
	if bypass || !d.config.Enabled {
		return Result{Success: true}, nil
	}

	for _, h := range d.handlers[point] {
		res := h(ctx, args)
		if !res.Success && point.AbortCapable() {
			return res, nil
		}
	}

	scriptResult, ran, err := d.runScript(ctx, point, args)
	if err != nil {
		return Result{}, err
	}
	if ran && !scriptResult.Success && point.AbortCapable() {
		return scriptResult, nil
	}

	return Result{Success: true}, nil
}

func (d *Dispatcher) runScript(ctx context.Context, point Point, args []string) (Result, bool, error) {
	if d.config.ScriptsDir == "" {
		return Result{}, false, nil
	}
	script := filepath.Join(d.config.ScriptsDir, point.String())
	info, err := os.Stat(script)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, false, nil
		}
		return Result{}, false, err
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return Result{}, false, nil
	}

	runCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, script, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Result{Success: false, Stderr: "hook timed out"}, true, nil
	}
	if err != nil {
		return Result{Success: false, Stderr: stderr.String()}, true, nil
	}
	return Result{Success: true}, true, nil
}
