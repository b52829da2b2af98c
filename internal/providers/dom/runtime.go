package dom

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// evalBudget caps script runtime independently of the call deadline, so a
// hostile script cannot consume the whole call timeout spinning.
const evalBudget = 2 * time.Second

type evalResult struct {
	value   interface{}
	console []string
}

// runtime wraps a goja VM bound to one document snapshot. The VM has no
// host globals: only console and a read-only dom helper object.
type runtime struct {
	vm  *goja.Runtime
	doc *goquery.Document

	console []string
}

func newRuntime(html string) (*runtime, error) {
	var doc *goquery.Document
	if html != "" {
		var err error
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, err
		}
	}

	rt := &runtime{vm: goja.New(), doc: doc}
	rt.vm.SetMaxCallStackSize(1024)
	if err := rt.setupGlobals(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *runtime) run(ctx context.Context, script string) (*evalResult, error) {
	timer := time.NewTimer(evalBudget)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt("execution budget exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("call cancelled")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(script)
	if err != nil {
		return nil, err
	}

	return &evalResult{value: exportValue(val), console: r.console}, nil
}

func (r *runtime) setupGlobals() error {
	console := r.vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			r.console = append(r.console, fmt.Sprintf("[%s] %s", level, strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "warn", "error"} {
		if err := console.Set(level, logFn(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	dom := r.vm.NewObject()
	if err := dom.Set("text", r.domText); err != nil {
		return err
	}
	if err := dom.Set("attr", r.domAttr); err != nil {
		return err
	}
	if err := dom.Set("count", r.domCount); err != nil {
		return err
	}
	return r.vm.Set("dom", dom)
}

func (r *runtime) find(selector string) *goquery.Selection {
	if r.doc == nil {
		return nil
	}
	return r.doc.Find(selector)
}

func (r *runtime) domText(call goja.FunctionCall) goja.Value {
	sel := r.find(call.Argument(0).String())
	if sel == nil {
		return r.vm.ToValue("")
	}
	return r.vm.ToValue(sel.Text())
}

func (r *runtime) domAttr(call goja.FunctionCall) goja.Value {
	sel := r.find(call.Argument(0).String())
	if sel == nil {
		return goja.Null()
	}
	value, exists := sel.Attr(call.Argument(1).String())
	if !exists {
		return goja.Null()
	}
	return r.vm.ToValue(value)
}

func (r *runtime) domCount(call goja.FunctionCall) goja.Value {
	sel := r.find(call.Argument(0).String())
	if sel == nil {
		return r.vm.ToValue(0)
	}
	return r.vm.ToValue(sel.Length())
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
