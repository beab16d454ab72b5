package email

import (
	_ "embed"
	"html/template"
	"strings"
)

var (
	//go:embed alert.html
	alertHTML     string
	alertTemplate = template.Must(template.New("alert.html").Parse(alertHTML))
)

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

type AlertEmailFormat struct {
	Heading string
	Text    string
}

func (ef *AlertEmailFormat) Subject() string {
	return "Livewatch: " + ef.Heading
}

func (ef *AlertEmailFormat) Lines() []string {
	return strings.Split(ef.Text, "\n")
}

func (ef *AlertEmailFormat) Body() string {
	return mustFillTemplate(alertTemplate, ef)
}
