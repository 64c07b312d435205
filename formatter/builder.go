package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/fatih/color"
)

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
	noStyle         = color.New(color.FgWhite)
)

// labelWidth aligns the "label: value" rows of every listing.
const labelWidth = 14

// row is one aligned "label: value" line.
type row struct {
	Label string
	Value string
}

func addRow(rows []row, label string, value any) []row {
	return append(rows, row{Label: label, Value: fmt.Sprint(value)})
}

var funcMap = template.FuncMap{
	"arrow":   arrow,
	"file":    fileStyle.Sprint,
	"row":     formatRow,
	"failure": failure,
	"missing": missing,
	"step":    step,
	"rule":    rule,
	"site":    site,
	"section": section,
	"release": release,
}

// render executes tmpl against data. A broken template is a programming
// error, so it panics through template.Must.
func render(name, tmpl string, data any) string {
	t := template.Must(template.New(name).Funcs(funcMap).Parse(tmpl))

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting %s: %v", name, err)
	}
	return buf.String()
}

// utils functions used in the text templates

func arrow(from, to string) string {
	return fileStyle.Sprint(from) + lineStyle.Sprint(" --> ") + fileStyle.Sprint(to)
}

func formatRow(label, value string) string {
	return lineStyle.Sprintf("  %-*s", labelWidth, label+":") + noStyle.Sprint(value)
}

func failure(class, msg string) string {
	endString := errorStyle.Sprint("error: ")
	endString += ruleStyle.Sprintf("%s\n", class)
	endString += lineStyle.Sprint("  = ")
	endString += messageStyle.Sprint(msg)
	return endString
}

func missing(name string) string {
	return warningStyle.Sprint("warning: ") + "missing runtime shim " + fileStyle.Sprint(name)
}

func rule(key string) string {
	return "    " + noStyle.Sprint(key)
}

func section(title string) string {
	return suggestionStyle.Sprint(title)
}

func release(r int, preview bool) string {
	if preview {
		return lineStyle.Sprintf("(java %d, preview)", r)
	}
	return lineStyle.Sprintf("(java %d)", r)
}

func joined(items []string) string {
	return strings.Join(items, ", ")
}
