// ABOUTME: HTML exporter for archived transactions using Go html/template
// ABOUTME: Renders each transaction as a receipt card; partial ones are flagged, terminal payments tabled

package export

import (
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mauromedda/posoverlay/internal/store"
)

// HTML renders r as a standalone document to w. Item text is escaped by the
// template; control characters sent by devices are dropped.
func HTML(r Report, w io.Writer) error {
	return htmlTmpl.Execute(w, r)
}

// statusClass maps a record to a CSS class name.
func statusClass(partial bool) string {
	if partial {
		return "partial"
	}
	return "complete"
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateTime)
}

func channels(ch []int) string {
	parts := make([]string, len(ch))
	for i, c := range ch {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ", ")
}

func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func terminalStamp(s string) string {
	t, err := time.ParseInLocation(store.TimeLayout, s, time.Local)
	if err != nil {
		return s
	}
	return t.Format(time.DateTime)
}

var funcMap = template.FuncMap{
	"statusClass":   statusClass,
	"stamp":         stamp,
	"channels":      channels,
	"printable":     printable,
	"terminalStamp": terminalStamp,
}

var htmlTmpl = template.Must(template.New("report").Funcs(funcMap).Parse(htmlTemplate))

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{ .Title }}</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    background: #1e1e2e;
    color: #cdd6f4;
    font-family: 'SF Mono', 'Cascadia Code', 'Fira Code', monospace;
    font-size: 14px;
    line-height: 1.6;
    padding: 24px;
    max-width: 900px;
    margin: 0 auto;
  }
  h1 { font-size: 18px; margin-bottom: 4px; }
  .generated { color: #9399b2; font-size: 12px; margin-bottom: 24px; }
  .receipt {
    margin-bottom: 16px;
    padding: 12px 16px;
    border-radius: 8px;
    border-left: 4px solid;
    background: #181825;
  }
  .receipt.complete { border-left-color: #a6e3a1; }
  .receipt.partial { border-left-color: #f9e2af; }
  .meta { color: #a6adc8; font-size: 12px; }
  .badge {
    display: inline-block;
    font-size: 11px;
    font-weight: 600;
    text-transform: uppercase;
    letter-spacing: 0.5px;
    padding: 2px 8px;
    border-radius: 4px;
    margin-left: 8px;
  }
  .complete .badge { background: #a6e3a122; color: #a6e3a1; }
  .partial .badge { background: #f9e2af22; color: #f9e2af; }
  ol { margin: 8px 0 0 24px; }
  .empty { color: #9399b2; font-style: italic; }
  table { width: 100%; border-collapse: collapse; margin-top: 8px; font-size: 12px; }
  th, td { text-align: left; padding: 4px 8px; border-bottom: 1px solid #313244; }
  th { color: #cba6f7; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<div class="generated">generated {{ stamp .Generated }}</div>
{{- range .Transactions }}
<div class="receipt {{ statusClass .Partial }}">
  <strong>#{{ .ID }} {{ printable .PosName }}</strong><span class="badge">{{ statusClass .Partial }}</span>
  <div class="meta">{{ stamp .Start }} to {{ stamp .Stop }} | channels {{ channels .Channels }}</div>
  {{- if .Items }}
  <ol>
    {{- range .Items }}
    <li>{{ printable . }}</li>
    {{- end }}
  </ol>
  {{- else }}
  <div class="empty">no items</div>
  {{- end }}
</div>
{{- end }}
{{- if .Terminal }}
<h1>Card terminal</h1>
<table>
  <tr><th>ID</th><th>Time</th><th>Code</th><th>Card</th><th>Money</th><th>Model</th><th>Serial</th><th>Received</th></tr>
  {{- range .Terminal }}
  <tr><td>{{ .ID }}</td><td>{{ terminalStamp .Time }}</td><td>{{ printable .TerminalCode }}</td><td>{{ printable .CardID }}</td><td>{{ printable .Money }}</td><td>{{ printable .TerminalModel }}</td><td>{{ printable .Serial }}</td><td>{{ stamp .DevTime }}</td></tr>
  {{- end }}
</table>
{{- end }}
</body>
</html>
`
