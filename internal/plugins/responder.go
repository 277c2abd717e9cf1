package plugins

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Responder supplies participant responses.
type Responder interface {
	// Respond blocks until the next response is available or ctx is done.
	// It returns io.EOF once no more responses will arrive.
	Respond(ctx context.Context) (string, error)
}

// LineResponder reads one response per line.
//
// Lines are read by a background goroutine, so a response typed after a trial
// timed out is kept for the next trial rather than lost in a cancelled read.
type LineResponder struct {
	r     io.Reader
	once  sync.Once
	lines chan string
	err   error // set before lines is closed
}

// NewLineResponder reads responses from r, typically os.Stdin.
func NewLineResponder(r io.Reader) *LineResponder {
	return &LineResponder{r: r, lines: make(chan string, 16)}
}

func (l *LineResponder) start() {
	go func() {
		sc := bufio.NewScanner(l.r)
		for sc.Scan() {
			l.lines <- strings.TrimRight(sc.Text(), "\r")
		}
		l.err = sc.Err()
		close(l.lines)
	}()
}

func (l *LineResponder) Respond(ctx context.Context) (string, error) {
	l.once.Do(l.start)
	select {
	case line, ok := <-l.lines:
		if !ok {
			if l.err != nil {
				return "", l.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ScriptResponder returns a fixed list of responses, then io.EOF.
// Safe for concurrent use.
type ScriptResponder struct {
	mu        sync.Mutex
	responses []string
}

func NewScriptResponder(responses ...string) *ScriptResponder {
	return &ScriptResponder{responses: responses}
}

func (s *ScriptResponder) Respond(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return "", io.EOF
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

// Remaining returns the number of unused responses.
func (s *ScriptResponder) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}
