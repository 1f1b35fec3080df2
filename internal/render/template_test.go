package render

import (
	"strings"
	"testing"
)

func TestRenderStringSecretAndEnv(t *testing.T) {
	e := &Engine{lookupEnv: func(key string) (string, bool) {
		if key == "BROKER" {
			return "localhost:9092", true
		}
		return "", false
	}}
	ctx := TemplateContext{Secrets: map[string]string{"TOKEN": "s3cr3t"}}

	got, err := e.RenderString(`curl -H "x: ${{ secret "TOKEN" }}" ${{ env "BROKER" }}`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `curl -H "x: s3cr3t" localhost:9092` {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderStringLeavesGoTemplatesAlone(t *testing.T) {
	e := New()
	in := `docker ps --format '{{.ID}}'`
	got, err := e.RenderString(in, TemplateContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestRenderStringMissingSecret(t *testing.T) {
	_, err := New().RenderString(`${{ secret "NOPE" }}`, TemplateContext{Secrets: map[string]string{}})
	if err == nil || !strings.Contains(err.Error(), `secret "NOPE" not found`) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestRenderAll(t *testing.T) {
	got, err := New().RenderAll([]string{"a", `${{ secret "B" }}`}, TemplateContext{Secrets: map[string]string{"B": "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected values: %v", got)
	}
}
