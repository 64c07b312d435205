package formatter

import (
	"fmt"

	"github.com/gnolang/jdowngrader/internal"
)

const stepsTemplate = `{{range .Steps -}}
{{step . $.Width}}
{{if $.Verbose}}{{range .Rules}}{{rule .}}
{{end}}{{end}}
{{- end}}`

type stepsData struct {
	Steps   []internal.StepInfo
	Width   int
	Verbose bool
}

// FormatSteps renders one line per step. With verbose set, each step is
// followed by the call-site keys it rewrites.
func FormatSteps(steps []internal.StepInfo, verbose bool) string {
	width := 0
	for _, s := range steps {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}
	return render("steps", stepsTemplate, stepsData{Steps: steps, Width: width, Verbose: verbose})
}

func step(s internal.StepInfo, width int) string {
	endString := ruleStyle.Sprintf("%-*s", width, s.Name)
	endString += lineStyle.Sprintf("  %d -> %d", s.Source.Release(), s.Target.Release())
	endString += noStyle.Sprint(fmt.Sprintf("  %d rules, %d members, %d remaps, %d hooks",
		len(s.Rules), s.Members, s.Remaps, s.Hooks))
	if s.Disabled {
		endString += warningStyle.Sprint("  disabled")
	}
	return endString
}
