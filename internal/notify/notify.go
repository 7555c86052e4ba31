// Package notify sends the new-lead notification email. It is invoked only
// for completed, non-spam leads; failures are logged by the caller and
// never fail the parent request.
package notify

import (
	"fmt"
	"strings"

	"github.com/resendlabs/resend-go"

	"leadpulse/internal/db"
)

// Service defines the interface for lead notifications, allowing for mock
// implementations in tests.
type Service interface {
	NotifyNewLead(lead *db.Lead) error
}

// ResendClient is the concrete implementation using the Resend API.
type ResendClient struct {
	client *resend.Client
	from   string
	to     string
}

func NewResendClient(apiKey, from, to string) *ResendClient {
	return &ResendClient{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (c *ResendClient) NotifyNewLead(lead *db.Lead) error {
	subject := fmt.Sprintf("New lead: %s", displayName(lead))

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{c.to},
		Subject: subject,
		Html:    leadEmailHTML(lead),
	}

	if _, err := c.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send lead notification via Resend: %w", err)
	}
	return nil
}

func displayName(lead *db.Lead) string {
	if lead.Name != "" {
		return lead.Name
	}
	if lead.Email != "" {
		return lead.Email
	}
	return lead.UUID.String()
}

func leadEmailHTML(lead *db.Lead) string {
	var b strings.Builder
	b.WriteString("<h2>New lead completed the funnel</h2><table>")
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", label, value)
	}
	row("Name", lead.Name)
	row("Email", lead.Email)
	row("Company", lead.Company)
	row("Website", lead.WebsiteURL)
	row("Industry", lead.Industry)
	row("Services", strings.Join(lead.Services, ", "))
	row("Message", lead.Message)
	row("Source", lead.SourceSite)
	row("Campaign", lead.UTMCampaign)
	b.WriteString("</table>")
	return b.String()
}

// Noop disables notification when no Resend API key is configured.
type Noop struct{}

func (Noop) NotifyNewLead(*db.Lead) error { return nil }
