package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/internal/message"
	"github.com/artifactory/invoice-reminders/pkg/logger"
)

type invoiceActions interface {
	AddInvoiceNote(ctx context.Context, invoiceID, text string) error
	DeleteInvoice(ctx context.Context, invoiceID string) error
	SendEmail(ctx context.Context, contactID, subject, body string) error
}

type chatClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
}

type snapshotStore interface {
	SaveSnapshot(ctx context.Context, channelID, messageTS string, group domain.OverdueGroup) error
	GetSnapshot(ctx context.Context, channelID, messageTS string) (*domain.OverdueGroup, error)
}

type actionFunc func(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error

// ActionService performs the work behind each button click.
type ActionService struct {
	billing   invoiceActions
	chat      chatClient
	snapshots snapshotStore
	config    *environments.Config
	links     message.Links
	now       func() time.Time

	actions map[string]actionFunc
}

// NewActionService wires the click handlers. snapshots may be nil when the cache is disabled.
func NewActionService(
	billing invoiceActions,
	chat chatClient,
	snapshots snapshotStore,
	config *environments.Config,
) *ActionService {
	s := &ActionService{
		billing:   billing,
		chat:      chat,
		snapshots: snapshots,
		config:    config,
		links:     message.Links{Domain: config.Org.Domain},
		now:       time.Now,
	}

	s.actions = map[string]actionFunc{
		domain.ActionSlackRemind:    s.remindViaSlack,
		domain.ActionTidyHQRemind:   s.remindViaEmail,
		domain.ActionDeleteInvoices: s.deleteInvoices,
		domain.ActionViewInvoices:   s.agreedToPay,
		domain.ActionAlreadyPaid:    s.alreadyPaid,
		domain.ActionNeedHelp:       s.needHelp,
		domain.ActionLooksWrong:     s.looksWrong,
	}

	return s
}

// Handle runs the action named by ic.ActionID. Malformed context and partial failures are
// reported to the admin channel before being returned.
func (s *ActionService) Handle(ctx context.Context, ic *domain.InteractionContext) error {
	if ic.ActionID == domain.ActionViewInvoicesAdmin {
		logger.Debugf("[%s] %s needs no processing", ic.CorrelationID, ic.ActionID)
		return nil
	}

	action, ok := s.actions[ic.ActionID]
	if !ok {
		logger.Warnf("[%s] Ignoring unknown action %q", ic.CorrelationID, ic.ActionID)
		return nil
	}

	logger.Infof("[%s] Handling %s clicked by %s", ic.CorrelationID, ic.ActionID, ic.ActorUserID)

	err := s.run(ctx, ic, action)
	if err != nil {
		logger.Errorf("[%s] %s failed: %v", ic.CorrelationID, ic.ActionID, err)
		s.report(ctx, ic, err)
		return err
	}

	logger.Infof("[%s] %s completed", ic.CorrelationID, ic.ActionID)

	return nil
}

func (s *ActionService) run(ctx context.Context, ic *domain.InteractionContext, action actionFunc) error {
	payload, err := domain.ParseButtonPayload(ic.Value)
	if err != nil {
		return err
	}
	payload.ContactID, payload.SlackUserID = s.config.RedirectIDs(payload.ContactID, payload.SlackUserID)

	s.loadSnapshot(ctx, ic)

	return action(ctx, ic, payload)
}

func (s *ActionService) loadSnapshot(ctx context.Context, ic *domain.InteractionContext) {
	if ic.Group != nil || s.snapshots == nil || ic.ChannelID == "" || ic.MessageTS == "" {
		return
	}

	group, err := s.snapshots.GetSnapshot(ctx, ic.ChannelID, ic.MessageTS)
	if err != nil {
		logger.Warnf("[%s] Snapshot lookup failed, falling back to message text: %v", ic.CorrelationID, err)
		return
	}
	if group == nil {
		logger.Debugf("[%s] No snapshot for %s/%s", ic.CorrelationID, ic.ChannelID, ic.MessageTS)
		return
	}

	ic.Group = group
}

// summary is what a summary-message click acts on.
type summary struct {
	name       string
	tally      string
	list       string
	invoiceIDs []string
}

func (s *ActionService) resolveSummary(ic *domain.InteractionContext) (summary, error) {
	if ic.Group != nil && len(ic.Group.Invoices) > 0 {
		return summary{
			name:       ic.Group.Contact.DisplayName,
			tally:      message.Tally(*ic.Group),
			list:       message.InvoiceList(*ic.Group, s.links, s.now()),
			invoiceIDs: ic.Group.InvoiceIDs(),
		}, nil
	}

	if ic.Header == "" || ic.Body == "" {
		return summary{}, fmt.Errorf("%w: clicked message has no header or invoice list", domain.ErrMalformedContext)
	}

	name, tally, err := message.ParseHeader(ic.Header)
	if err != nil {
		return summary{}, err
	}

	ids := message.ExtractInvoiceIDs(ic.Body)
	if len(ids) == 0 {
		return summary{}, fmt.Errorf("%w: invoice list has no invoice links", domain.ErrMalformedContext)
	}

	return summary{name: name, tally: tally, list: ic.Body, invoiceIDs: ids}, nil
}

func (s *ActionService) remindViaSlack(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error {
	if payload.SlackUserID == "" || payload.SlackUserID == domain.NoSlackID {
		return fmt.Errorf("%w: slack reminder for contact %s without a Slack user", domain.ErrMalformedContext, payload.ContactID)
	}

	target, err := s.resolveSummary(ic)
	if err != nil {
		return err
	}

	channel, _, _, err := s.chat.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{payload.SlackUserID},
	})
	if err != nil {
		return fmt.Errorf("failed to open DM with %s: %w", payload.SlackUserID, err)
	}

	text := message.ReminderText(target.tally, target.list, s.config.Scan.OverdueDays)

	dmChannel, ts, err := s.chat.PostMessageContext(ctx, channel.ID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(message.ReminderBlocks(text, payload.String(), s.links)...))
	if err != nil {
		return fmt.Errorf("failed to send reminder DM: %w", err)
	}

	if s.snapshots != nil && ic.Group != nil {
		if err := s.snapshots.SaveSnapshot(ctx, dmChannel, ts, *ic.Group); err != nil {
			logger.Warnf("[%s] Failed to cache reminder snapshot: %v", ic.CorrelationID, err)
		}
	}

	outcome := domain.NewActionOutcome(ic.ActionID)

	outcome.RecordChat(s.config.AdminChannel(), "notify", s.notifyAdmins(ctx, fmt.Sprintf(
		"<@%s> has been reminded to pay their <%s|invoices> by <@%s> via slack.",
		payload.SlackUserID, s.links.ContactFinances(payload.ContactID), ic.ActorUserID)))

	note := fmt.Sprintf("%s was reminded about this invoice via Slack (User: %s).", target.name, payload.SlackUserID)
	for _, id := range target.invoiceIDs {
		outcome.Record(id, "note", s.billing.AddInvoiceNote(ctx, id, note))
	}

	return outcome.Err()
}

func (s *ActionService) remindViaEmail(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error {
	target, err := s.resolveSummary(ic)
	if err != nil {
		return err
	}

	reminder := message.ReminderText(target.tally, target.list, s.config.Scan.OverdueDays)
	body := message.EmailBody(target.name, reminder, s.config.Org)

	if err := s.billing.SendEmail(ctx, payload.ContactID, message.EmailSubject(s.config.Org), body); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	outcome := domain.NewActionOutcome(ic.ActionID)

	outcome.RecordChat(s.config.AdminChannel(), "notify", s.notifyAdmins(ctx, fmt.Sprintf(
		"%s has been reminded to pay their <%s|invoices> by <@%s> via email.",
		target.name, s.links.ContactFinances(payload.ContactID), ic.ActorUserID)))

	note := fmt.Sprintf("%s was reminded about this invoice via email.", target.name)
	for _, id := range target.invoiceIDs {
		outcome.Record(id, "note", s.billing.AddInvoiceNote(ctx, id, note))
	}

	return outcome.Err()
}

func (s *ActionService) deleteInvoices(ctx context.Context, ic *domain.InteractionContext, _ domain.ButtonPayload) error {
	target, err := s.resolveSummary(ic)
	if err != nil {
		return err
	}

	outcome := domain.NewActionOutcome(ic.ActionID)

	for _, id := range target.invoiceIDs {
		s.deleteInvoice(ctx, ic, outcome, target.name, id)
	}

	return outcome.Err()
}

// deleteInvoice deletes, annotates and announces one invoice. The invoice is recorded once, with
// its first failed billing step. The admin channel hears about every invoice that was actually deleted.
func (s *ActionService) deleteInvoice(ctx context.Context, ic *domain.InteractionContext, outcome *domain.ActionOutcome, name, id string) {
	if err := s.billing.DeleteInvoice(ctx, id); err != nil {
		outcome.Record(id, "delete", err)
		return
	}

	outcome.Record(id, "note",
		s.billing.AddInvoiceNote(ctx, id, fmt.Sprintf("This invoice was deleted by %s via Slack.", ic.ActorUserID)))

	outcome.RecordChat(s.config.AdminChannel(), "notify", s.notifyAdmins(ctx, fmt.Sprintf(
		"<%s|An invoice> for %s was deleted by <@%s>.", s.links.AdminInvoice(id), name, ic.ActorUserID)))
}

func (s *ActionService) agreedToPay(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error {
	return s.acknowledgeMember(ctx, ic, payload,
		fmt.Sprintf("<@%s> has agreed to pay their <%s|invoices>",
			s.memberID(ic, payload), s.links.ContactFinances(payload.ContactID)),
		"Thank you for paying, your support is greatly appreciated!")
}

func (s *ActionService) alreadyPaid(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error {
	return s.acknowledgeMember(ctx, ic, payload,
		fmt.Sprintf("<@%s> has indicated that they've already paid their <%s|invoices>",
			s.memberID(ic, payload), s.links.ContactFinances(payload.ContactID)),
		"Thanks for letting us know you've already paid. Payments made via bank transfer will be reconciled within a few days.")
}

func (s *ActionService) acknowledgeMember(
	ctx context.Context,
	ic *domain.InteractionContext,
	payload domain.ButtonPayload,
	adminText, memberText string,
) error {
	outcome := domain.NewActionOutcome(ic.ActionID)

	outcome.RecordChat(s.config.AdminChannel(), "notify", s.notifyAdmins(ctx, adminText))

	member := s.memberID(ic, payload)
	_, err := s.chat.PostEphemeralContext(ctx, ic.ChannelID, member, slack.MsgOptionText(memberText, false))
	outcome.RecordChat(member, "ephemeral", err)

	return outcome.Err()
}

func (s *ActionService) needHelp(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error {
	return s.openHelpConversation(ctx, ic, payload, helpRequest{
		reason:    "they're unable to pay their outstanding invoices",
		adminText: "they're unable to pay their <%s|outstanding invoices>",
		audience:  "the treasurer",
		admins:    []string{s.config.Slack.Admins.Treasurer},
	})
}

func (s *ActionService) looksWrong(ctx context.Context, ic *domain.InteractionContext, payload domain.ButtonPayload) error {
	return s.openHelpConversation(ctx, ic, payload, helpRequest{
		reason:    "there's something wrong with their outstanding invoices",
		adminText: "there's something wrong with their <%s|outstanding invoices>",
		audience:  "the treasurer and membership officer",
		admins:    []string{s.config.Slack.Admins.Treasurer, s.config.Slack.Admins.Membership},
	})
}

type helpRequest struct {
	reason    string
	adminText string
	audience  string
	admins    []string
}

func (s *ActionService) openHelpConversation(
	ctx context.Context,
	ic *domain.InteractionContext,
	payload domain.ButtonPayload,
	req helpRequest,
) error {
	snippet, err := s.invoiceSnippet(ic)
	if err != nil {
		return err
	}

	member := s.memberID(ic, payload)

	channel, _, _, err := s.chat.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: append([]string{member}, req.admins...),
	})
	if err != nil {
		return fmt.Errorf("failed to open conversation with admins: %w", err)
	}

	opener := fmt.Sprintf("<@%s> has indicated %s.", member, req.reason)

	if _, _, err := s.chat.PostMessageContext(ctx, channel.ID,
		slack.MsgOptionText(opener, false),
		slack.MsgOptionBlocks(message.HelpOpenerBlocks(member, req.reason, snippet)...)); err != nil {
		return fmt.Errorf("failed to post conversation opener: %w", err)
	}

	mentions := mentionList(req.admins)
	outcome := domain.NewActionOutcome(ic.ActionID)

	_, err = s.chat.PostEphemeralContext(ctx, channel.ID, member, slack.MsgOptionText(fmt.Sprintf(
		"This is a direct message to %s (%s) to let them know you need help. They'll be in touch soon.",
		req.audience, mentions), false))
	outcome.RecordChat(member, "ephemeral", err)

	outcome.RecordChat(s.config.AdminChannel(), "notify", s.notifyAdmins(ctx, fmt.Sprintf(
		"<@%s> has indicated "+req.adminText+" and a conversation has been opened between them and: %s",
		member, s.links.ContactFinances(payload.ContactID), mentions)))

	return outcome.Err()
}

// invoiceSnippet is the public invoice list shown to admins in a help conversation.
func (s *ActionService) invoiceSnippet(ic *domain.InteractionContext) (string, error) {
	if ic.Group != nil && len(ic.Group.Invoices) > 0 {
		return message.PublicInvoiceLinks(message.InvoiceList(*ic.Group, s.links, s.now())), nil
	}
	return message.InvoiceSnippet(ic.Body)
}

// memberID is the member a reminder response came from. The payload wins so debug redirects hold.
func (s *ActionService) memberID(ic *domain.InteractionContext, payload domain.ButtonPayload) string {
	if payload.SlackUserID == "" || payload.SlackUserID == domain.NoSlackID {
		return ic.ActorUserID
	}
	return payload.SlackUserID
}

func (s *ActionService) notifyAdmins(ctx context.Context, text string) error {
	_, _, err := s.chat.PostMessageContext(ctx, s.config.AdminChannel(), slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to notify admin channel: %w", err)
	}
	return nil
}

// report posts one failure summary for a click to the admin channel.
func (s *ActionService) report(ctx context.Context, ic *domain.InteractionContext, err error) {
	var text string

	var partial *domain.PartialFailureError
	switch {
	case errors.As(err, &partial):
		text = partialFailureText(ic, partial)
	case errors.Is(err, domain.ErrMalformedContext):
		text = fmt.Sprintf(":warning: `%s` clicked by <@%s> could not be processed: the message no longer "+
			"carries the details it was posted with (%v).", ic.ActionID, ic.ActorUserID, err)
	default:
		text = fmt.Sprintf(":x: `%s` clicked by <@%s> failed: %v", ic.ActionID, ic.ActorUserID, err)
	}

	if _, _, postErr := s.chat.PostMessageContext(ctx, s.config.AdminChannel(),
		slack.MsgOptionText(text, false)); postErr != nil {
		logger.Errorf("[%s] Failed to report failure to admin channel: %v", ic.CorrelationID, postErr)
	}
}

func partialFailureText(ic *domain.InteractionContext, partial *domain.PartialFailureError) string {
	var details []string

	if partial.InvoiceCount() > 0 {
		failed := partial.FailedIDs()
		line := fmt.Sprintf("%d succeeded, %d failed", partial.SucceededCount, len(failed))
		if len(failed) > 0 {
			line += " (" + strings.Join(failed, ", ") + ")"
		}
		details = append(details, line)
	}

	if steps := partial.ChatSteps(); len(steps) > 0 {
		details = append(details, "Slack steps failed: "+strings.Join(steps, ", "))
	}

	return fmt.Sprintf(":warning: `%s` clicked by <@%s> partially failed: %s.",
		ic.ActionID, ic.ActorUserID, strings.Join(details, "; "))
}

func mentionList(ids []string) string {
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, "<@"+id+">")
	}
	return strings.Join(mentions, ", ")
}
