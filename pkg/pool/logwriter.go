package pool

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// stderrLogWriter adapts a local-process backend's stderr stream to
// domain.ServerLogWriter, one ServerLog entry per line. MCP stdio servers
// reserve stdout for the JSON-RPC channel, so backend-emitted log output
// only ever shows up on stderr ("stderr" ServerLog source).
//
// Grounded on the teacher's pkg/plugins/subprocess.go drainStderr, which
// scans a subprocess's stderr line by line; generalized here from
// fmt.Fprintf(os.Stderr, ...) to an append-only per-(space,server) log
// stream, and from a read-side scanner to a write-side buffer since
// exec.Cmd.Stderr is handed an io.Writer rather than something this
// package reads from.
type stderrLogWriter struct {
	logs domain.ServerLogWriter
	key  domain.Key
	now  func() time.Time

	mu  sync.Mutex
	buf bytes.Buffer
}

func newStderrLogWriter(logs domain.ServerLogWriter, key domain.Key, now func() time.Time) io.Writer {
	if logs == nil {
		return io.Discard
	}
	return &stderrLogWriter{logs: logs, key: key, now: now}
}

func (w *stderrLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// No newline yet; put the partial line back for the next Write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.append(line[:len(line)-1])
	}
	return len(p), nil
}

func (w *stderrLogWriter) append(line string) {
	_ = w.logs.Append(w.key, domain.ServerLog{
		Timestamp: w.now(),
		Level:     "info",
		Source:    domain.LogSourceStderr,
		Message:   line,
	})
}
