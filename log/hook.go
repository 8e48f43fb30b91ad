package log

import (
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

type stackHook struct{}

func (h *stackHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.ErrorLevel {
		return
	}

	arr := zerolog.Arr()
	for _, s := range traces(5) {
		arr.Dict(zerolog.Dict().
			Int("line", s.Line).
			Str("file", s.File).
			Str("function", s.Function),
		)
	}
	e.Array("stack", arr)
}

type stackTrace struct {
	Line     int
	File     string
	Function string
}

// traces collects the caller frames above the logging call, leaving out
// zerolog and runtime internals.
func traces(skip int) []stackTrace {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	st := make([]stackTrace, 0, n)
	for {
		frame, more := frames.Next()
		if !isInternalFrame(frame.Function) {
			st = append(st, stackTrace{
				Line:     frame.Line,
				File:     frame.File,
				Function: frame.Function,
			})
		}
		if !more {
			break
		}
	}

	return st
}

func isInternalFrame(fn string) bool {
	return fn == "" ||
		strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "github.com/rs/zerolog")
}
