// Package engine provides the Lisp scripting console for csgbox.
// It wraps zygomys in a sandboxed environment whose builtins place,
// combine and edit boxes in an editor.Session.
package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/csgbox/pkg/editor"
	"github.com/chazu/csgbox/pkg/logging"
	"github.com/chazu/csgbox/pkg/metrics"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine runs console scripts. It is safe for concurrent use; every run
// gets a fresh sandboxed environment, and a newer run supersedes the
// result of an older one still in flight.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	timeout  time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
	sessOpts []editor.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSessionOptions configures the fresh sessions built by Evaluate.
func WithSessionOptions(opts ...editor.Option) Option {
	return func(e *Engine) { e.sessOpts = append(e.sessOpts, opts...) }
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, log: logging.Nop()}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	return e
}

// Evaluate runs source against a new, empty session and returns it.
//
// Return semantics:
//   - On success: returns session + nil errors + nil error
//   - On parse/eval failure: returns nil session + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*editor.Session, []EvalError, error) {
	s := editor.New(e.sessOpts...)
	_, evalErrs, err := e.run(source, s)
	if err != nil || len(evalErrs) > 0 {
		return nil, evalErrs, err
	}
	return s, nil, nil
}

// Exec runs source against a live session and returns the printed value
// of its last expression. Builtins that ran before a failure keep their
// effect. A timed out script may still be mutating s when Exec returns.
func (e *Engine) Exec(source string, s *editor.Session) (string, []EvalError, error) {
	return e.run(source, s)
}

func (e *Engine) run(source string, s *editor.Session) (string, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		v, evalErrs := evaluate(source, s)
		ch <- evalResult{value: v, errors: evalErrs}
	}()

	start := time.Now()
	v, evalErrs, err := waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
	result := "ok"
	switch {
	case err != nil:
		result = "fatal"
		e.log.Warn("script aborted", "generation", gen, "err", err)
	case len(evalErrs) > 0:
		result = "error"
		e.log.Debug("script failed", "generation", gen, "errors", len(evalErrs))
	default:
		e.log.Debug("script evaluated", "generation", gen, "elapsed", time.Since(start))
	}
	e.metrics.ScriptEvals.WithLabelValues(result).Inc()
	return v, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func evaluate(source string, s *editor.Session) (string, []EvalError) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return "", parseZygomysError(err)
	}
	v, err := env.Run()
	if err != nil {
		return "", parseZygomysError(err)
	}
	if v == nil {
		return "", nil
	}
	return v.SexpString(nil), nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
