package template

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultTemplate = `Subject: Application for {{or .job.title "Software Engineer"}} Position at {{.contact.company}}

{{.greeting}}

I hope this email finds you well. I am writing to express my strong interest in the {{or .job.title "Software Engineer"}} position at {{.contact.company}}.

With my background in software development and passion for building impactful solutions, I believe I would be a great fit for your team. I am particularly excited about the opportunity to contribute to {{.contact.company}}'s mission and growth.

I have attached my resume for your review and would welcome the opportunity to discuss how my skills and experience align with your team's needs.

Thank you for your time and consideration. I look forward to hearing from you.

{{.sender.signature}}
`

const followUpTemplate = `Subject: Following Up - {{or .job.title "Software Engineer"}} Application at {{.contact.company}}

{{.greeting}}

I wanted to follow up on my previous application for the {{or .job.title "Software Engineer"}} position at {{.contact.company}}.

I remain very interested in the opportunity and would love to learn more about the role and how I might contribute to your team.
{{if .custom.previous_contact}}
Since we last spoke{{.custom.previous_contact}}, I have continued to develop my skills and remain enthusiastic about the possibility of joining {{.contact.company}}.
{{end}}
Please let me know if you need any additional information from me. I am happy to provide references or schedule a call at your convenience.

Thank you again for considering my application.

{{.sender.signature}}
`

const referralTemplate = `Subject: {{or .custom.referral "Referral"}} Recommended I Reach Out - {{or .job.title "Software Engineer"}} at {{.contact.company}}

{{.greeting}}

{{if .custom.referral}}{{.custom.referral}} suggested I reach out to you regarding the {{or .job.title "Software Engineer"}} position at {{.contact.company}}.{{else}}I was referred to you regarding the {{or .job.title "Software Engineer"}} position at {{.contact.company}}.{{end}}
{{if .custom.connection}}
{{.custom.connection}}
{{end}}
I am excited about the opportunity to bring my skills and experience to your team. {{.contact.company}}'s work in {{or .contact.department "technology"}} aligns perfectly with my professional interests and career goals.

I have attached my resume for your review. I would greatly appreciate the opportunity to discuss how I can contribute to your team.

Thank you for your time and consideration.

{{.sender.signature}}
`

// CreateDefaults writes the starter templates into the given directory.
// Existing files are overwritten.
func CreateDefaults(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}

	defaults := map[string]string{
		"default":   defaultTemplate,
		"follow_up": followUpTemplate,
		"referral":  referralTemplate,
	}
	for name, content := range defaults {
		path := filepath.Join(dir, name+fileExt)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write template %s: %w", name, err)
		}
	}
	return nil
}
