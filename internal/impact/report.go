package impact

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
)

// Report renderings are presentation-only exports; nothing parses them
// back.

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderMarkdown writes the report as a Markdown document.
func RenderMarkdown(w io.Writer, r *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Impact analysis: %s\n\n", r.Start)
	fmt.Fprintf(&b, "Generated %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**%d** impacted objects, max distance %d, average distance %.2f\n\n",
		len(r.Impacted), r.MaxDistance, r.AvgDistance)

	fmt.Fprintf(&b, "| Severity | Count |\n|---|---|\n")
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, r.SeverityCounts[sev])
	}
	b.WriteString("\n")

	if len(r.Impacted) > 0 {
		fmt.Fprintf(&b, "| Object | Kind | Distance | Severity | Path |\n|---|---|---|---|---|\n")
		for _, n := range r.Impacted {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n",
				n.Key, n.Kind, n.Distance, n.Severity, strings.Join(n.Path, " → "))
		}
		b.WriteString("\n")
	}

	if len(r.Cycles) > 0 {
		fmt.Fprintf(&b, "## Circular dependencies\n\n")
		for _, cycle := range r.Cycles {
			fmt.Fprintf(&b, "- %s → %s\n", strings.Join(cycle, " → "), cycle[0])
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var htmlReportTmpl = template.Must(template.New("impact").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Impact analysis: {{.Start}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
.critical { color: #b00020; font-weight: bold; }
.high { color: #d2691e; }
.medium { color: #b8860b; }
.low { color: #2e7d32; }
</style>
</head>
<body>
<h1>Impact analysis: {{.Start}}</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}.
{{len .Impacted}} impacted objects, max distance {{.MaxDistance}},
average distance {{printf "%.2f" .AvgDistance}}.</p>
<table>
<tr><th>Object</th><th>Kind</th><th>Distance</th><th>Severity</th><th>Path</th></tr>
{{range .Impacted}}<tr>
<td>{{.Key}}</td><td>{{.Kind}}</td><td>{{.Distance}}</td>
<td class="{{.Severity}}">{{.Severity}}</td>
<td>{{range $i, $k := .Path}}{{if $i}} &rarr; {{end}}{{$k}}{{end}}</td>
</tr>{{end}}
</table>
{{if .Cycles}}<h2>Circular dependencies</h2>
<ul>{{range .Cycles}}<li>{{range $i, $k := .}}{{if $i}} &rarr; {{end}}{{$k}}{{end}}</li>{{end}}</ul>
{{end}}
</body>
</html>
`))

// RenderHTML writes the report as a standalone HTML page.
func RenderHTML(w io.Writer, r *Report) error {
	return htmlReportTmpl.Execute(w, r)
}
