package message

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
)

// BalanceLine opens both reminder forms. rest is the "<total> across <n> invoices" half of a header.
func BalanceLine(rest string, overdueDays int) string {
	return fmt.Sprintf("As a reminder you have an outstanding balance of $%s. "+
		"(Excluding invoices that aren't at least %d days overdue)", rest, overdueDays)
}

// ReminderText is the member-facing reminder: balance line, blank line, public invoice list.
func ReminderText(rest, list string, overdueDays int) string {
	return BalanceLine(rest, overdueDays) + "\n\n" + PublicInvoiceLinks(list)
}

// ReminderBlocks builds the Slack DM sent to a member. Every button carries payload so the
// member's response can be traced back to the contact.
func ReminderBlocks(text, payload string, links Links) []slack.Block {
	return []slack.Block{
		Section(domain.BlockMessage, text),
		Divider(),
		Section("", "How would you like to proceed?"),
		Actions(
			LinkButton(domain.ActionViewInvoices, "Pay", payload, links.MemberInvoices()).
				WithStyle(slack.StylePrimary),
			Button(domain.ActionAlreadyPaid, "I've already paid", payload),
			Button(domain.ActionNeedHelp, "Unable to pay (contact)", payload),
			Button(domain.ActionLooksWrong, "This looks wrong (contact)", payload),
		),
	}
}

func EmailSubject(org environments.OrgConfig) string {
	return "Reminder: You have outstanding invoices with " + org.Name
}

// EmailBody renders the TidyHQ email reminder as HTML.
func EmailBody(name, reminder string, org environments.OrgConfig) string {
	body := SlackLinksToHTML(fmt.Sprintf("Hello %s,\n\n%s", name, reminder))
	body += fmt.Sprintf("\n\nIf you have any questions or concerns, please don't hesitate to reach out to us at "+
		"<a href=\"mailto:%s\">%s</a>.\n\nThank you for your support,\n%s",
		org.TreasurerEmail, org.TreasurerEmail, org.SignOff)
	return NewlinesToBR(body)
}

// HelpOpenerBlocks starts the group conversation between a member and the admins.
func HelpOpenerBlocks(memberID, reason, snippet string) []slack.Block {
	return []slack.Block{
		Section("", fmt.Sprintf("<@%s> has indicated %s.", memberID, reason)),
		Divider(),
		Section("", snippet),
	}
}
