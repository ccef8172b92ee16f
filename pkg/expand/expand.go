// Package expand evaluates ${...} expressions embedded in scenario parameter cells.
package expand

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Engine wraps a goja runtime holding the run's variables.
// A goja runtime is single-threaded, so every call goes through mu.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	mu        sync.Mutex
}

// New creates an engine with the given variables defined as globals.
func New(vars map[string]string) *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
	}
	e.runtime.Set("env", e.envFunc())
	for k, v := range vars {
		e.SetVariable(k, v)
	}
	return e
}

// envFunc returns env(name, fallback): the variable value or fallback when undefined.
func (e *Engine) envFunc() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if v, ok := e.variables[name]; ok {
			return e.runtime.ToValue(v)
		}
		if len(call.Arguments) > 1 {
			return call.Arguments[1]
		}
		return goja.Undefined()
	}
}

// SetVariable sets a variable accessible as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// Eval evaluates a JavaScript expression and returns the exported result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", script, err)
	}
	return result.Export(), nil
}

// EvalString evaluates an expression and formats the result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

// Expand replaces every ${...} in text with its evaluated value.
// Expressions that fail to evaluate and unmatched braces are left as-is.
func (e *Engine) Expand(text string) string {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		value, err := e.EvalString(result[idx+2 : end-1])
		if err != nil {
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result
}

// Params returns a copy of params with every value expanded.
func (e *Engine) Params(params map[string]string) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if strings.Contains(v, "${") {
			v = e.Expand(v)
		}
		out[k] = v
	}
	return out
}
