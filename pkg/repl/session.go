package repl

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/scribe/pkg/domain"
)

type request[M any] struct {
	code      string
	meta      M
	gen       uint64
	submitted time.Time
}

// session is one interpreter subprocess. Everything mutable is guarded by mu.
type session[M any] struct {
	d      *Driver[M]
	gen    uint64
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	marker string

	mu       sync.Mutex
	framer   *Framer
	queue    Queue[*request[M]]
	backlog  []*request[M]
	stderr   bytes.Buffer
	started  bool
	dead     bool
	timer    *time.Timer
	timerSeq uint64

	wake chan struct{}
	done chan struct{}
}

func (d *Driver[M]) launch(gen uint64) (*session[M], error) {
	marker := d.opts.newMarker()
	s := &session[M]{
		d:      d,
		gen:    gen,
		marker: marker,
		framer: NewFramer(marker, WithEchoPattern(d.echo), WithMaxBytes(d.cfg.MaxFrameBytes)),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	cmd := exec.Command(d.cfg.Command[0], d.cfg.Command[1:]...)
	cmd.Dir = d.cfg.Dir
	if len(d.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), d.cfg.Env...)
	}
	// Non-file writers make os/exec copy each stream on its own goroutine.
	cmd.Stdout = stdoutWatcher[M]{s}
	cmd.Stderr = stderrWatcher[M]{s}
	cmd.WaitDelay = time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLaunchFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLaunchFailure, d.cfg.Command[0], err)
	}
	s.cmd = cmd
	s.stdin = stdin

	d.opts.logger.Debug("interpreter started", "generation", gen, "pid", cmd.Process.Pid)

	go s.waitLoop()
	go s.writeLoop()
	return s, nil
}

func (s *session[M]) pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *session[M]) submit(req *request[M]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return domain.ErrInterpreterTerminated
	}
	s.backlog = append(s.backlog, req)
	s.signal()
	return nil
}

func (s *session[M]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session[M]) state() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.dead:
		return domain.SessionTerminated
	case s.started:
		return domain.SessionRunning
	}
	return domain.SessionStarting
}

func (s *session[M]) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len() + len(s.backlog)
}

// writeLoop is the single writer of the session's stdin.
func (s *session[M]) writeLoop() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			req, ok := s.next()
			if !ok {
				break
			}
			if _, err := io.WriteString(s.stdin, s.payload(req.code)); err != nil {
				s.d.opts.logger.Debug("interpreter stdin write failed", "generation", s.gen, "err", err)
				return
			}
		}
	}
}

// next moves the oldest backlog request to the frame queue if the in-flight limit allows.
func (s *session[M]) next() (*request[M], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead || len(s.backlog) == 0 {
		return nil, false
	}
	if limit := s.d.cfg.MaxInFlight; limit > 0 && s.queue.Len() >= limit {
		return nil, false
	}
	req := s.backlog[0]
	s.backlog[0] = nil
	s.backlog = s.backlog[1:]

	if !s.started {
		// Anything on stderr so far is the startup banner.
		s.started = true
		s.stderr.Reset()
	}
	s.queue.Push(req)
	if s.queue.Len() == 1 {
		s.armLocked()
	}
	return req, true
}

func (s *session[M]) payload(code string) string {
	var b strings.Builder
	stmt := s.d.cfg.Statement
	b.WriteString(strings.Replace(stmt, "%s", StartMarker(s.marker), 1))
	b.WriteByte('\n')
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(strings.Replace(stmt, "%s", EndMarker(s.marker), 1))
	b.WriteByte('\n')
	return b.String()
}

// onStdout runs on the stdout copy goroutine.
func (s *session[M]) onStdout(p []byte) {
	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return
	}
	outputs, ferr := s.framer.Write(p)

	var fault error
	for _, out := range outputs {
		req, err := s.queue.Pop()
		if err != nil {
			fault = err
			break
		}
		stderr := strings.TrimSpace(s.stderr.String())
		s.stderr.Reset()
		s.d.box.push(req, domain.OutputRecord[M]{
			Stdout:     out,
			Stderr:     stderr,
			Metadata:   req.meta,
			Generation: req.gen,
		})
	}
	if fault == nil {
		fault = ferr
	}
	if fault == nil && len(outputs) > 0 {
		s.armLocked()
		s.signal()
	}
	s.mu.Unlock()

	if fault != nil {
		reason := "desync"
		var headErr error
		if ferr != nil && fault == ferr {
			reason, headErr = "overflow", ferr
		}
		s.d.opts.logger.Warn("interpreter framing failed", "generation", s.gen, "reason", reason, "err", fault)
		s.d.restart(s, reason, headErr)
	}
}

// onStderr runs on the stderr copy goroutine.
func (s *session[M]) onStderr(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead || !s.started {
		return
	}
	if room := s.d.cfg.MaxFrameBytes - s.stderr.Len(); room < len(p) {
		if room <= 0 {
			return
		}
		p = p[:room]
	}
	s.stderr.Write(p)
}

// armLocked (re)starts the timeout for the oldest written request.
func (s *session[M]) armLocked() {
	timeout := s.d.cfg.EvalTimeout
	if timeout <= 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
	if s.queue.Len() == 0 {
		return
	}
	seq := s.timerSeq
	s.timer = time.AfterFunc(timeout, func() { s.expire(seq) })
}

func (s *session[M]) expire(seq uint64) {
	s.mu.Lock()
	stale := s.dead || seq != s.timerSeq
	s.mu.Unlock()
	if stale {
		return
	}
	s.d.opts.logger.Warn("evaluation timed out", "generation", s.gen, "timeout", s.d.cfg.EvalTimeout)
	s.d.restart(s, "timeout", domain.ErrEvaluationTimeout)
}

// terminate marks the session dead, kills the subprocess and hands back every
// unanswered request: written ones first, then the unwritten backlog.
// ok is false when the session was already dead.
func (s *session[M]) terminate() (written, backlog []*request[M], ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return nil, nil, false
	}
	s.dead = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	written = s.queue.Drain()
	backlog = s.backlog
	s.backlog = nil
	s.stderr.Reset()
	s.framer.Reset()

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return written, backlog, true
}

func (s *session[M]) waitLoop() {
	err := s.cmd.Wait()
	close(s.done)
	s.d.crashed(s, err)
}

func (s *session[M]) waitExit(timeout time.Duration) {
	select {
	case <-s.done:
	case <-time.After(timeout):
	}
}

type stdoutWatcher[M any] struct{ s *session[M] }

func (w stdoutWatcher[M]) Write(p []byte) (int, error) {
	w.s.onStdout(p)
	return len(p), nil
}

type stderrWatcher[M any] struct{ s *session[M] }

func (w stderrWatcher[M]) Write(p []byte) (int, error) {
	w.s.onStderr(p)
	return len(p), nil
}
