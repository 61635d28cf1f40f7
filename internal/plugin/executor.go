package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ayusman/verovision/pkg/metrics"
)

// ErrTimeout is returned when a plugin does not answer within the executor
// timeout.
var ErrTimeout = errors.New("plugin timed out")

// maxStderr caps how much plugin stderr is quoted in errors.
const maxStderr = 512

// Executor runs one-shot output plugins: one JSON Request on stdin, one JSON
// Response on stdout, bounded by a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout disables the bound.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Execute runs p with req. A Response with Success false is returned as is;
// only transport failures are errors.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	if req.Action != "" && !p.Manifest.SupportsAction(req.Action) {
		metrics.RecordPluginCall(p.Manifest.Name, "error")
		return nil, fmt.Errorf("plugin %s: %w: %s", p.Manifest.Name, ErrUnsupportedAction, req.Action)
	}

	resp, err := e.run(ctx, p, req)
	switch {
	case errors.Is(err, ErrTimeout):
		metrics.RecordPluginCall(p.Manifest.Name, "timeout")
	case err != nil:
		metrics.RecordPluginCall(p.Manifest.Name, "error")
	case !resp.Success:
		metrics.RecordPluginCall(p.Manifest.Name, "rejected")
	default:
		metrics.RecordPluginCall(p.Manifest.Name, "ok")
	}
	return resp, err
}

func (e *Executor) run(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("plugin %s: %w after %s", p.Manifest.Name, ErrTimeout, e.timeout)
		}
		if msg := quote(stderr.String()); msg != "" {
			return nil, fmt.Errorf("plugin %s: %w: %s", p.Manifest.Name, err, msg)
		}
		return nil, fmt.Errorf("plugin %s: %w", p.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("plugin %s: parse response: %w: %s", p.Manifest.Name, err, quote(stdout.String()))
	}
	return &resp, nil
}

func quote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return s
}
