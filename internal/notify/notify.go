// Package notify emails the sales team about lead milestones.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// Notifier announces lead milestones.
type Notifier interface {
	LeadQualified(ctx context.Context, lead *models.Lead, to string) error
	LeadConverted(ctx context.Context, lead *models.Lead, opp *models.Opportunity, to string) error
}

// NopNotifier sends nothing.
type NopNotifier struct{}

func (NopNotifier) LeadQualified(context.Context, *models.Lead, string) error { return nil }
func (NopNotifier) LeadConverted(context.Context, *models.Lead, *models.Opportunity, string) error {
	return nil
}

// dialer is satisfied by *gomail.Dialer.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends HTML mail through an SMTP relay.
type SMTPNotifier struct {
	from     string
	fallback string
	dialer   dialer
}

// NewSMTPNotifier creates a notifier. Mail with no recipient goes to from.
func NewSMTPNotifier(host string, port int, user, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		from:     from,
		fallback: from,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

var (
	qualifiedTmpl = template.Must(template.New("qualified").Parse(`<p>Lead <strong>{{.Name}}</strong>{{if .Company}} at {{.Company}}{{end}} was qualified with a score of {{.Score}}.</p>
<p>Email: {{.Email}}{{if .Phone}}<br>Phone: {{.Phone}}{{end}}</p>`))

	convertedTmpl = template.Must(template.New("converted").Parse(`<p>Lead <strong>{{.Name}}</strong>{{if .Company}} at {{.Company}}{{end}} was converted.</p>
{{if .Opportunity}}<p>Opportunity: {{.Opportunity}}{{if .Amount}} ({{.Amount}}){{end}}</p>{{end}}`))
)

type leadMail struct {
	Name        string
	Company     string
	Email       string
	Phone       string
	Score       int
	Opportunity string
	Amount      string
}

func newLeadMail(lead *models.Lead) leadMail {
	return leadMail{
		Name:    lead.FullName(),
		Company: lead.Company,
		Email:   lead.Email,
		Phone:   lead.Phone,
		Score:   lead.Score,
	}
}

func (n *SMTPNotifier) LeadQualified(_ context.Context, lead *models.Lead, to string) error {
	m, err := n.buildMessage(to, fmt.Sprintf("Lead qualified: %s", lead.FullName()), qualifiedTmpl, newLeadMail(lead))
	if err != nil {
		return err
	}
	return n.send(m)
}

func (n *SMTPNotifier) LeadConverted(_ context.Context, lead *models.Lead, opp *models.Opportunity, to string) error {
	data := newLeadMail(lead)
	if opp != nil {
		data.Opportunity = opp.Name
		if opp.Amount.Valid {
			data.Amount = opp.Amount.Decimal.StringFixed(2)
		}
	}
	m, err := n.buildMessage(to, fmt.Sprintf("Lead converted: %s", lead.FullName()), convertedTmpl, data)
	if err != nil {
		return err
	}
	return n.send(m)
}

func (n *SMTPNotifier) buildMessage(to, subject string, tmpl *template.Template, data interface{}) (*gomail.Message, error) {
	body, err := renderBody(tmpl, data)
	if err != nil {
		return nil, err
	}
	if to == "" {
		to = n.fallback
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m, nil
}

func (n *SMTPNotifier) send(m *gomail.Message) error {
	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func renderBody(tmpl *template.Template, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", tmpl.Name(), err)
	}
	return body.String(), nil
}
