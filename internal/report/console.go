package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/osbits/fcheck/internal/checks"
	"github.com/osbits/fcheck/internal/runner"
)

// Console prints a human readable summary of a run.
type Console struct {
	w        io.Writer
	noColor  bool
	renderer *lipgloss.Renderer
}

// NewConsole creates a console printer writing to w. Colors are only used
// when w is a terminal and noColor is false.
func NewConsole(w io.Writer, noColor bool) *Console {
	return &Console{w: w, noColor: noColor, renderer: lipgloss.NewRenderer(w)}
}

func (c *Console) style(color string) lipgloss.Style {
	s := c.renderer.NewStyle()
	if c.noColor {
		return s
	}
	return s.Foreground(lipgloss.Color(color))
}

func (c *Console) badge(o checks.Outcome) string {
	switch o {
	case checks.Success:
		return c.style("#3FB950").Bold(true).Render("PASS")
	case checks.Failure:
		return c.style("#FF6B6B").Bold(true).Render("FAIL")
	default:
		return c.style("#AAAAAA").Render("SKIP")
	}
}

// Print writes the summary.
func (c *Console) Print(res runner.RunResult) error {
	var b strings.Builder
	head := c.style("#5B8DEF").Bold(true)
	muted := c.style("#AAAAAA")

	fmt.Fprintf(&b, "%s %s\n", head.Render("fcheck run"), muted.Render(res.RunID))
	if res.Setup != nil {
		c.writeCheck(&b, "setup", *res.Setup)
	}
	for _, t := range res.Tests {
		c.writeCheck(&b, "test", t)
	}
	if res.Teardown != nil {
		c.writeCheck(&b, "teardown", *res.Teardown)
	}

	total, failed := 0, 0
	for _, t := range res.Tests {
		if t.Result == checks.Disabled {
			continue
		}
		total++
		if t.Failed() {
			failed++
		}
	}
	fmt.Fprintf(&b, "\n%s %d/%d checks passed in %s\n",
		c.badge(res.Result), total-failed, total, res.Duration().Round(time.Millisecond))

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) writeCheck(b *strings.Builder, phase string, check checks.CheckResult) {
	muted := c.style("#AAAAAA")
	fmt.Fprintf(b, "%s %s %s\n", c.badge(check.Result), check.Name, muted.Render("("+phase+")"))
	for _, a := range check.Results {
		fmt.Fprintf(b, "    %s %s %s\n", c.badge(a.Result), a.Name, muted.Render(a.Duration.String()))
		if a.Error != nil {
			fmt.Fprintf(b, "        %s: %s\n", a.Error.Kind, firstLine(a.Error.Message))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Written prints the location of the written report.
func (c *Console) Written(path string) {
	fmt.Fprintf(c.w, "report written to %s\n", path)
}
