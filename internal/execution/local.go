package execution

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"codesync-backend/internal/dto"
)

const (
	LocalVersion = "es2015"

	timeoutSignal      = "SIGKILL"
	timeoutMessage     = "execution timed out"
	outputLimitMessage = "output limit exceeded"

	maxCallStackSize = 4096
)

// LocalBackend runs JavaScript in an in-process interpreter. Every request
// gets a fresh runtime with no host access besides console and stdin.
type LocalBackend struct {
	timeout   time.Duration
	maxOutput int
}

// NewLocalBackend caps captured console output at the same size as a remote
// backend reply.
func NewLocalBackend(timeout time.Duration) *LocalBackend {
	return &LocalBackend{timeout: timeout, maxOutput: maxResponseBytes}
}

func (l *LocalBackend) Name() string {
	return BackendLocal
}

type consoleCapture struct {
	mu        sync.Mutex
	stdout    strings.Builder
	stderr    strings.Builder
	output    strings.Builder
	limit     int
	truncated bool
}

// write reports false once the limit is reached; the rest of line is dropped.
func (c *consoleCapture) write(toStderr bool, line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return false
	}
	if remaining := c.limit - c.output.Len(); c.limit > 0 && len(line) > remaining {
		line = line[:remaining]
		c.truncated = true
	}
	if toStderr {
		c.stderr.WriteString(line)
	} else {
		c.stdout.WriteString(line)
	}
	c.output.WriteString(line)
	return !c.truncated
}

func (c *consoleCapture) full() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

func (l *LocalBackend) Execute(ctx context.Context, req Request) (*dto.ExecuteResponse, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)
	capture := &consoleCapture{limit: l.maxOutput}

	console := vm.NewObject()
	for name, toStderr := range map[string]bool{"log": false, "info": false, "debug": false, "warn": true, "error": true} {
		toStderr := toStderr
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			if capture.full() {
				vm.Interrupt(outputLimitMessage)
				return goja.Undefined()
			}
			if !capture.write(toStderr, formatArgs(call.Arguments)+"\n") {
				vm.Interrupt(outputLimitMessage)
			}
			return goja.Undefined()
		}); err != nil {
			return nil, &BackendError{Backend: BackendLocal, Err: err}
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, &BackendError{Backend: BackendLocal, Err: err}
	}
	if err := vm.Set("stdin", req.Stdin); err != nil {
		return nil, &BackendError{Backend: BackendLocal, Err: err}
	}

	runCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(timeoutMessage)
		case <-finished:
		}
	}()

	_, runErr := vm.RunString(req.Source)

	capture.mu.Lock()
	defer capture.mu.Unlock()
	stage := dto.ExecutionStage{
		Stdout: capture.stdout.String(),
		Stderr: capture.stderr.String(),
	}

	var interrupted *goja.InterruptedError
	var exception *goja.Exception
	switch {
	case runErr == nil:
		code := 0
		stage.Code = &code

	case errors.As(runErr, &interrupted):
		// Both limits kill the run; the message tells them apart.
		msg := timeoutMessage
		if capture.truncated {
			msg = outputLimitMessage
		}
		signal := timeoutSignal
		stage.Signal = &signal
		stage.Stderr += msg + "\n"
		capture.output.WriteString(msg + "\n")

	case errors.As(runErr, &exception):
		code := 1
		stage.Code = &code
		msg := exception.Value().String()
		stage.Stderr += msg + "\n"
		capture.output.WriteString(msg + "\n")

	default:
		code := 1
		stage.Code = &code
		stage.Stderr += runErr.Error() + "\n"
		capture.output.WriteString(runErr.Error() + "\n")
	}
	stage.Output = capture.output.String()

	return &dto.ExecuteResponse{
		Language: req.Language,
		Version:  LocalVersion,
		Run:      stage,
	}, nil
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	return strings.Join(parts, " ")
}

func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	switch v.Export().(type) {
	case map[string]interface{}, []interface{}:
		if b, err := json.Marshal(v.Export()); err == nil {
			return string(b)
		}
	}
	return v.String()
}
