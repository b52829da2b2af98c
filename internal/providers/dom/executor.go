// Package dom executes dom-read and dom-evaluate calls against a document
// snapshot supplied by the host. Reads support CSS selectors (goquery) and
// XPath (htmlquery); returned HTML fragments are sanitized before crossing
// back to the extension. Evaluation runs inside a goja sandbox with no
// ambient host access, a bounded runtime, and an explicit DOM helper API.
package dom

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Executor serves DOM capabilities.
type Executor struct {
	sanitizer *bluemonday.Policy
	log       *logging.Logger
}

// NewExecutor creates a DOM executor.
func NewExecutor(log *logging.Logger) *Executor {
	return &Executor{
		sanitizer: bluemonday.UGCPolicy(),
		log:       log,
	}
}

// Capabilities implements providers.Executor.
func (e *Executor) Capabilities() []types.Capability {
	return []types.Capability{types.CapDOMRead, types.CapDOMEvaluate}
}

// Execute routes one DOM call.
func (e *Executor) Execute(ctx context.Context, req types.CallRequest) (*providers.Outcome, error) {
	html, _ := req.Params["html"].(string)

	switch req.Capability {
	case types.CapDOMRead:
		return e.read(req, html)
	case types.CapDOMEvaluate:
		script, _ := req.Params["script"].(string)
		return e.evaluate(ctx, req, script, html)
	default:
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "unsupported dom capability"),
		}, nil
	}
}

func (e *Executor) read(req types.CallRequest, html string) (*providers.Outcome, error) {
	if html == "" {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "html parameter required"),
		}, nil
	}

	if xpath, ok := req.Params["xpath"].(string); ok && xpath != "" {
		return e.readXPath(req, html, xpath)
	}

	selector, _ := req.Params["selector"].(string)
	if selector == "" {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "selector or xpath parameter required"),
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "unparseable document"),
		}, nil
	}

	sel := doc.Find(selector)
	op, _ := req.Params["op"].(string)

	var data map[string]interface{}
	switch op {
	case "html":
		fragment, _ := sel.Html()
		data = map[string]interface{}{"html": e.sanitizer.Sanitize(fragment), "count": sel.Length()}
	case "attr":
		name, _ := req.Params["attr"].(string)
		value, exists := sel.Attr(name)
		data = map[string]interface{}{"value": value, "exists": exists, "count": sel.Length()}
	default:
		data = map[string]interface{}{"text": sel.Text(), "count": sel.Length()}
	}

	return &providers.Outcome{
		Result: types.OK(req.ID, data),
		Bytes:  int64(len(html)),
	}, nil
}

func (e *Executor) readXPath(req types.CallRequest, html, xpath string) (*providers.Outcome, error) {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "unparseable document"),
		}, nil
	}
	nodes, err := htmlquery.QueryAll(doc, xpath)
	if err != nil {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "bad xpath expression"),
		}, nil
	}

	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		texts = append(texts, htmlquery.InnerText(n))
	}
	return &providers.Outcome{
		Result: types.OK(req.ID, map[string]interface{}{"matches": texts, "count": len(texts)}),
		Bytes:  int64(len(html)),
	}, nil
}

func (e *Executor) evaluate(ctx context.Context, req types.CallRequest, script, html string) (*providers.Outcome, error) {
	if script == "" {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "script parameter required"),
		}, nil
	}

	rt, err := newRuntime(html)
	if err != nil {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "unparseable document"),
		}, nil
	}

	res, err := rt.run(ctx, script)
	if err != nil {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "SCRIPT_ERROR", err.Error()),
			Bytes:  int64(len(script)),
		}, nil
	}

	return &providers.Outcome{
		Result: types.OK(req.ID, map[string]interface{}{
			"value":   res.value,
			"console": res.console,
		}),
		Bytes: int64(len(script) + len(html)),
	}, nil
}
