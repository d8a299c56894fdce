package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
)

//
// Test fakes shared by the service tests.
//

type fakeBilling struct {
	invoices []domain.TidyHQInvoice
	listErr  error
	since    time.Time

	notes   []noteCall
	deleted []string
	emails  []emailCall

	failDelete map[string]bool
	failNote   map[string]bool
	emailErr   error
}

type noteCall struct {
	invoiceID string
	text      string
}

type emailCall struct {
	contactID string
	subject   string
	body      string
}

func (b *fakeBilling) ListInvoices(ctx context.Context, updatedSince time.Time) ([]domain.TidyHQInvoice, error) {
	b.since = updatedSince
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.invoices, nil
}

func (b *fakeBilling) AddInvoiceNote(ctx context.Context, invoiceID, text string) error {
	if b.failNote[invoiceID] {
		return fmt.Errorf("simulated note failure")
	}
	b.notes = append(b.notes, noteCall{invoiceID: invoiceID, text: text})
	return nil
}

func (b *fakeBilling) DeleteInvoice(ctx context.Context, invoiceID string) error {
	if b.failDelete[invoiceID] {
		return fmt.Errorf("simulated delete failure")
	}
	b.deleted = append(b.deleted, invoiceID)
	return nil
}

func (b *fakeBilling) SendEmail(ctx context.Context, contactID, subject, body string) error {
	if b.emailErr != nil {
		return b.emailErr
	}
	b.emails = append(b.emails, emailCall{contactID: contactID, subject: subject, body: body})
	return nil
}

type postedMessage struct {
	channel string
	user    string
	text    string
	blocks  string
}

type fakeChat struct {
	mu sync.Mutex

	posts      []postedMessage
	ephemerals []postedMessage
	opened     [][]string

	postErr      error
	openErr      error
	ephemeralErr error
}

func decodeOptions(channel string, options []slack.MsgOption) postedMessage {
	_, values, _ := slack.UnsafeApplyMsgOptions("", channel, "", options...)
	if values == nil {
		values = url.Values{}
	}
	return postedMessage{channel: channel, text: values.Get("text"), blocks: values.Get("blocks")}
}

func (c *fakeChat) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.postErr != nil {
		return "", "", c.postErr
	}

	c.posts = append(c.posts, decodeOptions(channelID, options))
	return channelID, fmt.Sprintf("1700000000.%06d", len(c.posts)), nil
}

func (c *fakeChat) PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ephemeralErr != nil {
		return "", c.ephemeralErr
	}

	msg := decodeOptions(channelID, options)
	msg.user = userID
	c.ephemerals = append(c.ephemerals, msg)
	return "1700000000.000001", nil
}

func (c *fakeChat) OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openErr != nil {
		return nil, false, false, c.openErr
	}

	c.opened = append(c.opened, params.Users)

	channel := &slack.Channel{}
	channel.ID = fmt.Sprintf("D%d", len(c.opened))
	return channel, false, false, nil
}

// postsTo returns the texts posted to channel, in order.
func (c *fakeChat) postsTo(channel string) []string {
	var texts []string
	for _, p := range c.posts {
		if p.channel == channel {
			texts = append(texts, p.text)
		}
	}
	return texts
}

type fakeSnapshots struct {
	saved map[string]domain.OverdueGroup
	err   error
}

func (f *fakeSnapshots) SaveSnapshot(ctx context.Context, channelID, messageTS string, group domain.OverdueGroup) error {
	if f.saved == nil {
		f.saved = make(map[string]domain.OverdueGroup)
	}
	f.saved[channelID+":"+messageTS] = group
	return nil
}

func (f *fakeSnapshots) GetSnapshot(ctx context.Context, channelID, messageTS string) (*domain.OverdueGroup, error) {
	if f.err != nil {
		return nil, f.err
	}
	group, ok := f.saved[channelID+":"+messageTS]
	if !ok {
		return nil, nil
	}
	return &group, nil
}

func testConfig() *environments.Config {
	return &environments.Config{
		Slack: environments.SlackConfig{
			AdminChannel: "CADMIN",
			Admins:       environments.AdminsConfig{Treasurer: "UTREAS", Membership: "UMEMB"},
		},
		TidyHQ: environments.TidyHQConfig{SlackFieldID: "slack_id"},
		Org: environments.OrgConfig{
			Domain:         "artifactory.tidyhq.com",
			Name:           "Artifactory",
			SignOff:        "Artifactory Committee",
			TreasurerEmail: "treasurer@artifactory.org.au",
		},
		Scan: environments.ScanConfig{LookbackDays: 90, OverdueDays: 7},
	}
}
