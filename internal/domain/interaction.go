package domain

import (
	"fmt"
	"strings"
)

// Action IDs carried by the summary and reminder buttons.
const (
	ActionViewInvoicesAdmin = "view_invoices_admin"
	ActionSlackRemind       = "slack_remind"
	ActionTidyHQRemind      = "tidyhq_remind"
	ActionDeleteInvoices    = "delete_invoices"
	ActionViewInvoices      = "view_invoices"
	ActionAlreadyPaid       = "already_paid"
	ActionNeedHelp          = "need_help"
	ActionLooksWrong        = "looks_wrong"
)

// Block IDs the handler reads back from a clicked message.
const (
	BlockHeader  = "header"
	BlockMessage = "message"
)

// ButtonPayload is the "<contactID>_<slackUserID>" value attached to action buttons.
type ButtonPayload struct {
	ContactID   string
	SlackUserID string
}

func (p ButtonPayload) String() string {
	slackID := p.SlackUserID
	if slackID == "" {
		slackID = NoSlackID
	}
	return p.ContactID + "_" + slackID
}

func ParseButtonPayload(value string) (ButtonPayload, error) {
	contactID, slackID, ok := strings.Cut(value, "_")
	if !ok || contactID == "" {
		return ButtonPayload{}, fmt.Errorf("%w: button value %q is not <contact>_<user>", ErrMalformedContext, value)
	}
	return ButtonPayload{ContactID: contactID, SlackUserID: slackID}, nil
}

// InteractionContext is everything a click handler needs, rebuilt per event.
type InteractionContext struct {
	CorrelationID string
	ActionID      string
	ActorUserID   string
	ChannelID     string
	MessageTS     string

	// Value is the raw button value, normally a ButtonPayload.
	Value string

	// Header and Body are the rendered texts of the header and message blocks.
	Header string
	Body   string

	// Group is the snapshot stored when the message was posted, if still cached.
	Group *OverdueGroup
}
