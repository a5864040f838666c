package report

import (
	"passgate/internal/engine/core"
	"passgate/internal/engine/matcher"
)

// ExplainData is the value handed to the explain template: enough detail
// about a Validate call to answer "why was this request matched/denied"
// without re-running the engine.
type ExplainData struct {
	Collection string
	Action     string
	Matched    bool
	// MatchedValidators lists the names of validators the matching variant
	// actually configured (nil Config entries are skipped), in registration
	// order, so an operator can see which rules mattered.
	MatchedValidators []string
	Errors            []core.ValidateError
}

const defaultExplainTemplate = `{{- if .Matched -}}
{{ .Collection }}.{{ .Action }}: matched ({{ join ", " .MatchedValidators }})
{{- else -}}
{{ .Collection }}.{{ .Action }}: denied
{{- range .Errors }}
  - [{{ .Type }}] {{ .Error }}
{{- end -}}
{{- end -}}
`

// Explainer renders ExplainData with the sandboxed renderer, falling back to
// a built-in plain-text template when no custom one is configured.
type Explainer struct {
	renderer *Renderer
	tmpl     *Template
}

// NewExplainer builds an Explainer around renderer, compiling the built-in
// default template. Pass a non-nil custom template (via CompileFile/
// CompileInline on the same renderer) to Explainer.UseTemplate to override it.
func NewExplainer(renderer *Renderer) (*Explainer, error) {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	tmpl, err := renderer.CompileInline("explain-default", defaultExplainTemplate)
	if err != nil {
		return nil, err
	}
	return &Explainer{renderer: renderer, tmpl: tmpl}, nil
}

// UseTemplate swaps in a custom explain template.
func (e *Explainer) UseTemplate(tmpl *Template) {
	if e == nil || tmpl == nil {
		return
	}
	e.tmpl = tmpl
}

// Explain renders a human-readable summary of result for the given request.
func (e *Explainer) Explain(collection, action string, result matcher.Result) (string, error) {
	data := ExplainData{
		Collection: collection,
		Action:     action,
		Matched:    result.Matched != nil,
		Errors:     result.Errors,
	}
	if result.Matched != nil {
		for _, p := range result.Matched.Processors {
			if p.Config != nil {
				data.MatchedValidators = append(data.MatchedValidators, p.Name)
			}
		}
	}
	return e.tmpl.Render(data)
}
