package mail

import (
	"html"
	"sort"
	"strings"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/template"
)

// Render substitutes placeholders in a stored template. Values placed into the
// HTML body are escaped. With includeData, a table of the submission fields is appended.
func Render(tpl *models.EmailTemplate, ctx map[string]any, includeData bool) (subject, body string) {
	subject = template.Interpolate(tpl.Subject, ctx)
	body = template.InterpolateWith(tpl.HTML, ctx, html.EscapeString)

	if includeData {
		body += DataTable(ctx)
	}

	return subject, body
}

// DataTable renders the submission data of ctx as an HTML table, fields sorted by name.
func DataTable(ctx map[string]any) string {
	data, ok := template.Lookup(ctx, models.ContextKeySubmission+".data")
	if !ok {
		return ""
	}

	fields, ok := data.(map[string]any)
	if !ok || len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var b strings.Builder

	b.WriteString(`<table style="border-collapse:collapse;margin-top:16px">`)

	for _, key := range keys {
		b.WriteString(`<tr><th style="text-align:left;padding:4px 8px;border:1px solid #ddd">`)
		b.WriteString(html.EscapeString(key))
		b.WriteString(`</th><td style="padding:4px 8px;border:1px solid #ddd">`)
		b.WriteString(html.EscapeString(template.Stringify(fields[key])))
		b.WriteString(`</td></tr>`)
	}

	b.WriteString(`</table>`)

	return b.String()
}
