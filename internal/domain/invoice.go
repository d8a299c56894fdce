package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NoSlackID fills the chat half of a button payload when the contact has no Slack identity.
const NoSlackID = "NOSLACKID"

type Invoice struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   time.Time       `json:"dueDate"`
	ContactID string          `json:"contactId"`
	Name      string          `json:"name"`
	Paid      bool            `json:"paid"`
}

type Contact struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	SlackUserID string `json:"slackUserId,omitempty"`
}

// HasSlack reports whether reminders can go out as a Slack DM.
func (c Contact) HasSlack() bool {
	return c.SlackUserID != "" && c.SlackUserID != NoSlackID
}

// OverdueGroup is one delinquent contact and the invoices listed in its summary.
type OverdueGroup struct {
	Contact   Contact         `json:"contact"`
	Invoices  []Invoice       `json:"invoices"`
	TotalOwed decimal.Decimal `json:"totalOwed"`
}

func (g OverdueGroup) InvoiceIDs() []string {
	ids := make([]string, 0, len(g.Invoices))
	for _, inv := range g.Invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

// ContactInvoices is the scan-time grouping of unpaid invoices for one contact,
// kept in first-seen order.
type ContactInvoices struct {
	Contact  Contact
	Invoices []Invoice
}
