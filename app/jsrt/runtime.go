// Package jsrt embeds a JavaScript runtime (goja) behind a small
// facade used by the script filters. A Runtime is safe for concurrent
// use; calls are serialized internally.
package jsrt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/client"
)

const fetchCacheTTL = 5 * time.Minute

// ScriptError reports a failure inside user-provided script code.
type ScriptError struct {
	Detail string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("script error: %s", e.Detail)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Value wraps a script return value.
type Value struct {
	v goja.Value
}

func (v Value) IsUndefined() bool {
	return v.v == nil || goja.IsUndefined(v.v)
}

func (v Value) IsNull() bool {
	return v.v != nil && goja.IsNull(v.v)
}

// Export converts the value to plain Go data (maps, slices, strings,
// float64, bool, nil).
func (v Value) Export() interface{} {
	if v.v == nil {
		return nil
	}
	return v.v.Export()
}

// Elements returns the value's array elements, or false when the value
// is not an array.
func (v Value) Elements() ([]Value, bool) {
	obj, ok := v.v.(*goja.Object)
	if !ok {
		return nil, false
	}
	lengthValue := obj.Get("length")
	if lengthValue == nil {
		return nil, false
	}

	length := int(lengthValue.ToInteger())
	elements := make([]Value, 0, length)
	for i := 0; i < length; i++ {
		elements = append(elements, Value{v: obj.Get(strconv.Itoa(i))})
	}
	return elements, true
}

type Runtime struct {
	mu sync.Mutex
	vm *goja.Runtime
}

func New() *Runtime {
	vm := goja.New()
	installConsole(vm)
	installFetch(vm)
	return &Runtime{vm: vm}
}

// Eval runs a chunk of script in the runtime's global scope.
func (r *Runtime) Eval(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.vm.RunString(code); err != nil {
		return &ScriptError{Detail: "evaluation failed", Err: err}
	}
	return nil
}

// HasFunction reports whether a global function with the given name is
// defined.
func (r *Runtime) HasFunction(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.vm.Get(name)
	if v == nil {
		return false
	}
	_, ok := goja.AssertFunction(v)
	return ok
}

// Call invokes a global function with the given arguments. Arguments
// are converted from plain Go data.
func (r *Runtime) Call(name string, args ...interface{}) (Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.vm.Get(name)
	if v == nil {
		return Value{}, &ScriptError{Detail: fmt.Sprintf("function %q is not defined", name)}
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return Value{}, &ScriptError{Detail: fmt.Sprintf("%q is not a function", name)}
	}

	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		jsArgs[i] = r.vm.ToValue(arg)
	}

	result, err := fn(goja.Undefined(), jsArgs...)
	if err != nil {
		return Value{}, &ScriptError{Detail: fmt.Sprintf("call to %q failed", name), Err: err}
	}
	return Value{v: result}, nil
}

func installConsole(vm *goja.Runtime) {
	format := func(args []goja.Value) string {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.String()
		}
		return strings.Join(parts, " ")
	}

	console := vm.NewObject()
	console.Set("log", func(args ...goja.Value) {
		slog.Info("script console", "message", format(args))
	})
	console.Set("warn", func(args ...goja.Value) {
		slog.Warn("script console", "message", format(args))
	})
	console.Set("error", func(args ...goja.Value) {
		slog.Error("script console", "message", format(args))
	})
	vm.Set("console", console)
}

// installFetch binds a synchronous fetch(url) that returns
// {status, ok, content_type, body}. Errors throw into the script.
func installFetch(vm *goja.Runtime) {
	httpClient, err := client.Config{}.Build(fetchCacheTTL, cfg.DefaultUserAgent())
	if err != nil {
		return
	}

	vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		url := call.Argument(0).String()

		resp, err := httpClient.Get(context.Background(), url)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		body, err := resp.Text()
		if err != nil {
			panic(vm.NewGoError(err))
		}

		obj := vm.NewObject()
		obj.Set("status", resp.StatusCode)
		obj.Set("ok", resp.StatusCode < 400)
		obj.Set("content_type", resp.ContentType())
		obj.Set("body", body)
		return obj
	})
}
