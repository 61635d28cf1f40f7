package plugin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/ayusman/verovision/internal/gesture"
	"github.com/ayusman/verovision/pkg/logger"
)

// Classifier scores feature vectors with an external classifier plugin.
//
// Protocol: the process is started lazily and kept running. Each frame is one
// JSON line {"features":[...]} on stdin; the plugin answers with one line,
// either {"label":n} or {"scores":[...]}, or {"error":"..."}.
type Classifier struct {
	plugin  *Plugin
	classes int
	log     logger.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pipe    io.ReadCloser
	stdout  *bufio.Reader
	started bool
}

// NewClassifier wraps a classifier plugin. classes is the alphabet size score
// vectors must match; zero accepts any length.
func NewClassifier(p *Plugin, classes int) (*Classifier, error) {
	if p.Manifest.Kind != KindClassifier {
		return nil, fmt.Errorf("%s: %w", p.Manifest.Name, ErrWrongKind)
	}
	return &Classifier{
		plugin:  p,
		classes: classes,
		log:     logger.Named("plugin"),
	}, nil
}

// Classify implements gesture.Classifier. If ctx ends while waiting for the
// answer, the process is killed and restarted on the next call.
func (c *Classifier) Classify(ctx context.Context, features gesture.FeatureVector) (gesture.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return gesture.Result{}, err
	}
	if err := c.ensureStarted(ctx); err != nil {
		return gesture.Result{}, err
	}

	line, err := json.Marshal(classifyRequest{Features: features})
	if err != nil {
		return gesture.Result{}, fmt.Errorf("marshal features: %w", err)
	}

	cmd, pipe := c.cmd, c.pipe
	stopKill := context.AfterFunc(ctx, func() {
		pipe.Close()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	})
	defer stopKill()

	if _, err := c.stdin.Write(append(line, '\n')); err != nil {
		c.shutdown()
		return gesture.Result{}, fmt.Errorf("write features: %w", err)
	}

	reply, err := c.stdout.ReadBytes('\n')
	if err != nil {
		c.shutdown()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return gesture.Result{}, ctxErr
		}
		return gesture.Result{}, fmt.Errorf("read classification: %w", err)
	}

	return c.decode(reply)
}

func (c *Classifier) decode(reply []byte) (gesture.Result, error) {
	var resp classifyResponse
	if err := json.Unmarshal(reply, &resp); err != nil {
		return gesture.Result{}, fmt.Errorf("parse classification: %w", err)
	}

	switch {
	case resp.Error != "":
		return gesture.Result{}, errors.New(resp.Error)
	case resp.Scores != nil:
		if c.classes > 0 && len(resp.Scores) != c.classes {
			return gesture.Result{}, fmt.Errorf("got %d scores, expected %d", len(resp.Scores), c.classes)
		}
		return gesture.ScoreVector(resp.Scores), nil
	case resp.Label != nil:
		return gesture.RawLabel(*resp.Label), nil
	default:
		return gesture.Result{}, errors.New("classification has neither label nor scores")
	}
}

func (c *Classifier) ensureStarted(ctx context.Context) error {
	if c.started {
		return nil
	}

	c.cmd = exec.Command(c.plugin.Executable)
	c.cmd.Dir = c.plugin.Path
	c.cmd.Stderr = os.Stderr

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start classifier plugin: %w", err)
	}

	c.stdin = stdin
	c.pipe = stdout
	c.stdout = bufio.NewReader(stdout)
	c.started = true
	c.log.Info(ctx, "classifier plugin started",
		logger.String("plugin", c.plugin.Manifest.Name), logger.Int("pid", c.cmd.Process.Pid))

	return nil
}

func (c *Classifier) shutdown() error {
	if !c.started {
		return nil
	}

	c.stdin.Close()
	err := c.cmd.Wait()
	c.started = false
	c.cmd = nil
	c.stdin = nil
	c.pipe = nil
	c.stdout = nil

	return err
}

// Close stops the plugin process.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}
