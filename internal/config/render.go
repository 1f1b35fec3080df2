package config

import (
	"fmt"

	"github.com/osbits/fcheck/internal/render"
)

// Render expands ${{ }} templates in every action's string fields.
func (d *RunDefinition) Render(engine *render.Engine, secrets map[string]string) error {
	for _, check := range d.Checks() {
		data := map[string]interface{}{
			"check": map[string]interface{}{
				"name": check.Name,
			},
		}
		ctx := render.TemplateContext{Secrets: secrets, Data: data}
		for i := range check.Commands {
			rendered, err := renderAction(engine, ctx, check.Commands[i].Action)
			if err != nil {
				return fmt.Errorf("%w: check %q command %d: %v", ErrInvalid, check.Name, i+1, err)
			}
			check.Commands[i].Action = rendered
		}
	}
	return nil
}

func renderAction(engine *render.Engine, ctx render.TemplateContext, action Action) (Action, error) {
	var err error
	str := func(s string) string {
		if err != nil {
			return s
		}
		var out string
		out, err = engine.RenderString(s, ctx)
		return out
	}
	switch a := action.(type) {
	case ProcessAction:
		a.Command = str(a.Command)
		return a, err
	case FileCopyAction:
		a.From = str(a.From)
		a.To = str(a.To)
		return a, err
	case MessageWriteAction:
		a.Host = str(a.Host)
		a.Topic = str(a.Topic)
		if err != nil {
			return a, err
		}
		a.Messages, err = engine.RenderAll(a.Messages, ctx)
		return a, err
	case MessageReadAction:
		a.Host = str(a.Host)
		a.Topic = str(a.Topic)
		return a, err
	case DelayAction:
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action %T", action)
	}
}
