package detector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// maxFrameBytes bounds one encoded frame sent to the helper.
const maxFrameBytes = 16 << 20

var errFrameTooLarge = errors.New("frame exceeds helper limit")

// helper is a running landmark helper process. Requests are framed as a
// 4-byte big-endian length followed by the JPEG payload; each reply is one
// JSON line.
type helper struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startHelper(python, script string, args []string) (*helper, error) {
	cmd := exec.Command(python, append([]string{script}, args...)...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start helper %s: %w", script, err)
	}
	return &helper{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// exchange sends one frame and returns the reply line.
func (h *helper) exchange(payload []byte) ([]byte, error) {
	if err := writeFrame(h.stdin, payload); err != nil {
		return nil, err
	}
	line, err := h.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return line, nil
}

// stop closes stdin, which the helper treats as end of input, and reaps it.
func (h *helper) stop() error {
	h.stdin.Close()
	if h.cmd == nil {
		return nil
	}
	return h.cmd.Wait()
}

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameBytes {
		return fmt.Errorf("%w: %d bytes", errFrameTooLarge, len(payload))
	}
	msg := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(msg, uint32(len(payload)))
	if _, err := w.Write(append(msg, payload...)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// searchPaths lists where rel may live: the working directory and its
// parents, next to the executable, and under ~/.verovision.
func searchPaths(rel string) []string {
	paths := []string{rel, filepath.Join("..", rel), filepath.Join("..", "..", rel)}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".verovision", rel))
	}
	return paths
}

// locate returns the absolute path of the first existing candidate, or "".
func locate(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
