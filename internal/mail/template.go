package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"time"
)

var codeTemplate = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <div style="max-width: 560px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #0e3b66;">LACPA</h2>
    <p>Dear {{.Name}},</p>
    <p>{{.Intro}}</p>
    <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px; background: #f3f4f6; padding: 12px 20px; display: inline-block;">{{.Code}}</p>
    <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
    <p style="color: #6b7280; font-size: 12px;">Lebanese Association of Certified Public Accountants</p>
  </div>
</body>
</html>
`))

type templateData struct {
	Name    string
	Intro   string
	Code    string
	Minutes int
}

func subjectFor(purpose string) string {
	if purpose == PurposeReset {
		return "LACPA password reset code"
	}
	return "Verify your LACPA account"
}

func render(d Delivery, now time.Time) (string, error) {
	intro := "Use the code below to verify your email address and activate your LACPA account."
	if d.Purpose == PurposeReset {
		intro = "Use the code below to reset your LACPA account password."
	}

	name := d.Name
	if name == "" {
		name = "member"
	}

	minutes := int(math.Ceil(d.ExpiresAt.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err := codeTemplate.Execute(&buf, templateData{Name: name, Intro: intro, Code: d.Code, Minutes: minutes})
	if err != nil {
		return "", fmt.Errorf("render code email: %w", err)
	}
	return buf.String(), nil
}
