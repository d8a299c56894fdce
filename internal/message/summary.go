package message

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/internal/domain"
)

// Intro is posted once per scan ahead of the per-contact summaries.
func Intro(overdueDays int) string {
	return fmt.Sprintf("This is a list of contacts with invoices at least %d days overdue.", overdueDays)
}

// Links builds URLs on the organisation's TidyHQ site.
type Links struct {
	Domain string
}

func (l Links) AdminInvoice(invoiceID string) string {
	return fmt.Sprintf("https://%s/finances/invoices/%s", l.Domain, invoiceID)
}

func (l Links) ContactFinances(contactID string) string {
	return fmt.Sprintf("https://%s/contacts/%s/finances", l.Domain, contactID)
}

func (l Links) MemberInvoices() string {
	return fmt.Sprintf("https://%s/member/invoices", l.Domain)
}

// Tally is the "<total> across <n> invoice(s)" phrase shared by headers and reminders.
func Tally(group domain.OverdueGroup) string {
	noun := "invoices"
	if len(group.Invoices) == 1 {
		noun = "invoice"
	}
	return fmt.Sprintf("%s across %d %s", group.TotalOwed.StringFixed(2), len(group.Invoices), noun)
}

// Header renders "<name> owes $<total> across <n> invoice(s)".
func Header(group domain.OverdueGroup) string {
	return fmt.Sprintf("%s owes $%s", group.Contact.DisplayName, Tally(group))
}

// DaysOverdue counts whole days since the due date.
func DaysOverdue(due, now time.Time) int {
	return int(now.Sub(due).Hours() / 24)
}

// InvoiceList renders the bulleted invoice body with admin links. Every invoice ID is
// embedded as /invoices/<id> so ExtractInvoiceIDs can recover it.
func InvoiceList(group domain.OverdueGroup, links Links, now time.Time) string {
	lines := make([]string, 0, len(group.Invoices))
	for _, inv := range group.Invoices {
		lines = append(lines, fmt.Sprintf("$%s - <%s|%s> (Due %d days ago)",
			inv.Amount.StringFixed(2), links.AdminInvoice(inv.ID), escape(inv.Name), DaysOverdue(inv.DueDate, now)))
	}
	return "• " + strings.Join(lines, "\n• ")
}

// Summary builds the admin channel message for one overdue group.
func Summary(group domain.OverdueGroup, links Links, now time.Time) (string, []slack.Block) {
	header := Header(group)
	name := group.Contact.DisplayName
	total := group.TotalOwed.StringFixed(2)

	remindConfirm := Confirm(
		"Are you sure?",
		fmt.Sprintf("This will send a reminder to %s. Make sure that there aren't any pending bank transactions "+
			"from this contact and that they haven't already been reminded recently.", name),
		"Yes, remind them",
		"No, abort",
	)

	var elements []slack.BlockElement

	if group.Contact.HasSlack() {
		payload := domain.ButtonPayload{ContactID: group.Contact.ID, SlackUserID: group.Contact.SlackUserID}
		elements = append(elements,
			Button(domain.ActionSlackRemind, "Remind via Slack", payload.String()).WithConfirm(remindConfirm))
	}

	noSlack := domain.ButtonPayload{ContactID: group.Contact.ID, SlackUserID: domain.NoSlackID}.String()

	elements = append(elements,
		Button(domain.ActionTidyHQRemind, "Remind via TidyHQ", noSlack).WithConfirm(remindConfirm),
		LinkButton(domain.ActionViewInvoicesAdmin, "View Invoices", group.Contact.ID, links.ContactFinances(group.Contact.ID)),
	)

	deleteConfirm := Confirm(
		"Delete listed invoices?",
		fmt.Sprintf("This will delete the listed invoices for %s totalling $%s. This process cannot be undone.", name, total),
		"Yes, delete them",
		"No, abort",
	)
	deleteConfirm.Style = slack.StyleDanger

	elements = append(elements,
		Button(domain.ActionDeleteInvoices, "Delete invoices", noSlack).
			WithStyle(slack.StyleDanger).
			WithConfirm(deleteConfirm))

	blocks := []slack.Block{
		Section(domain.BlockHeader, header),
		Divider(),
		Section(domain.BlockMessage, InvoiceList(group, links, now)),
		Divider(),
		Actions(elements...),
	}

	return header, blocks
}

func escape(text string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "|", "-").Replace(text)
}
