package formatter

import (
	"time"

	"github.com/gnolang/jdowngrader/downgrade"
)

const reportTemplate = `{{arrow .Input .Output}}
{{range .Rows}}{{row .Label .Value}}
{{end}}{{range .Failures}}{{failure .Class .Error}}
{{end}}{{range .Missing}}{{missing .}}
{{end}}`

type reportData struct {
	Input    string
	Output   string
	Rows     []row
	Failures []downgrade.Failure
	Missing  []string
}

// FormatReport renders a run summary followed by one block per failed
// class and one warning per missing runtime shim.
func FormatReport(r *downgrade.Report) string {
	var rows []row
	rows = addRow(rows, "transformed", r.Transformed)
	rows = addRow(rows, "unchanged", r.Unchanged)
	rows = addRow(rows, "skipped", r.Skipped)
	rows = addRow(rows, "failed", r.Failed())
	if r.Resources > 0 {
		rows = addRow(rows, "resources", r.Resources)
	}
	rows = addRow(rows, "replaced", r.Replaced)
	if len(r.Shims) > 0 {
		rows = addRow(rows, "shims", len(r.Shims))
	}
	rows = addRow(rows, "duration", r.Duration.Round(time.Millisecond))

	return render("report", reportTemplate, reportData{
		Input:    r.Input,
		Output:   r.Output,
		Rows:     rows,
		Failures: r.Failures,
		Missing:  r.Missing,
	})
}
