package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
)

const (
	leftDelim  = "${{"
	rightDelim = "}}"
)

// Engine renders definition strings. It uses ${{ }} delimiters so that
// commands carrying their own Go templates (docker --format '{{.ID}}') pass
// through untouched.
type Engine struct {
	lookupEnv func(string) (string, bool)
}

// TemplateContext provides data for template execution.
type TemplateContext struct {
	Secrets map[string]string
	Data    map[string]interface{}
}

// New creates a new template engine reading the process environment.
func New() *Engine {
	return &Engine{lookupEnv: os.LookupEnv}
}

// RenderString renders the provided template string with context.
func (e *Engine) RenderString(tmpl string, ctx TemplateContext) (string, error) {
	if !strings.Contains(tmpl, leftDelim) {
		return tmpl, nil
	}
	t, err := template.New("tpl").Delims(leftDelim, rightDelim).Option("missingkey=error").Funcs(template.FuncMap{
		"secret": func(key string) (string, error) {
			if ctx.Secrets == nil {
				return "", fmt.Errorf("no secrets available")
			}
			val, ok := ctx.Secrets[key]
			if !ok {
				return "", fmt.Errorf("secret %q not found", key)
			}
			return val, nil
		},
		"env": func(key string) (string, error) {
			val, ok := e.lookupEnv(key)
			if !ok {
				return "", fmt.Errorf("env var %q not set", key)
			}
			return val, nil
		},
		"to_json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx.Data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// RenderAll renders each value of a slice.
func (e *Engine) RenderAll(values []string, ctx TemplateContext) ([]string, error) {
	if len(values) == 0 {
		return values, nil
	}
	out := make([]string, len(values))
	for i, val := range values {
		rendered, err := e.RenderString(val, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}

// RenderMap renders each value of a map, keys are kept as is.
func (e *Engine) RenderMap(values map[string]string, ctx TemplateContext) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		rendered, err := e.RenderString(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}
