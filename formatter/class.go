package formatter

import (
	"fmt"
	"sort"

	"github.com/gnolang/jdowngrader/downgrade"
)

const classTemplate = `{{file .Name}} {{release .Release .Preview}}
{{range .Rows}}{{row .Label .Value}}
{{end}}{{if .Calls}}{{section "rewrites:"}}
{{range .Calls}}{{site .}}
{{end}}{{end}}`

type classData struct {
	downgrade.ClassInfo
	Rows []row
}

// FormatClass renders what Inspect found in a class.
func FormatClass(info downgrade.ClassInfo) string {
	var rows []row
	rows = addRow(rows, "super", info.Super)
	if len(info.Interfaces) > 0 {
		rows = addRow(rows, "interfaces", joined(info.Interfaces))
	}
	if info.Record {
		rows = addRow(rows, "record", "yes")
	}
	if info.NestHost != "" {
		rows = addRow(rows, "nest host", info.NestHost)
	}
	if len(info.NestMembers) > 0 {
		rows = addRow(rows, "nest members", joined(info.NestMembers))
	}
	if len(info.Permitted) > 0 {
		rows = addRow(rows, "permits", joined(info.Permitted))
	}
	rows = addRow(rows, "fields", info.Fields)
	rows = addRow(rows, "methods", info.Methods)

	bootstraps := make([]string, 0, len(info.Indy))
	for b := range info.Indy {
		bootstraps = append(bootstraps, b)
	}
	sort.Strings(bootstraps)
	for _, b := range bootstraps {
		rows = addRow(rows, "indy", fmt.Sprintf("%s x%d", b, info.Indy[b]))
	}

	return render("class", classTemplate, classData{ClassInfo: info, Rows: rows})
}

func site(c downgrade.CallSite) string {
	return "  " + fileStyle.Sprint(c.Method) + lineStyle.Sprint(" --> ") + c.Call + " " + ruleStyle.Sprintf("[%s]", c.Step)
}
