package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/internal/message"
	"github.com/artifactory/invoice-reminders/pkg/logger"
)

const dueDateLayout = "2006-01-02"

// Small internal interfaces so we can test without touching TidyHQ, Slack or Valkey.
type invoiceLister interface {
	ListInvoices(ctx context.Context, updatedSince time.Time) ([]domain.TidyHQInvoice, error)
}

type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type snapshotSaver interface {
	SaveSnapshot(ctx context.Context, channelID, messageTS string, group domain.OverdueGroup) error
}

// ScanReport summarises one Scan-and-Post run.
type ScanReport struct {
	RunID    string    `json:"runId"`
	Contacts int       `json:"contacts"`
	Posted   int       `json:"posted"`
	Failed   int       `json:"failed"`
	Started  time.Time `json:"started"`
}

type ScanService struct {
	billing   invoiceLister
	chat      messagePoster
	snapshots snapshotSaver
	config    *environments.Config
	links     message.Links
	now       func() time.Time
}

// NewScanService wires the scan job. snapshots may be nil when the cache is disabled.
func NewScanService(
	billing invoiceLister,
	chat messagePoster,
	snapshots snapshotSaver,
	config *environments.Config,
) *ScanService {
	return &ScanService{
		billing:   billing,
		chat:      chat,
		snapshots: snapshots,
		config:    config,
		links:     message.Links{Domain: config.Org.Domain},
		now:       time.Now,
	}
}

// FetchUnpaidInvoices returns the unpaid invoices touched since the given time.
func (s *ScanService) FetchUnpaidInvoices(ctx context.Context, since time.Time) ([]domain.TidyHQInvoice, error) {
	raw, err := s.billing.ListInvoices(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	unpaid := make([]domain.TidyHQInvoice, 0, len(raw))
	for _, inv := range raw {
		if inv.Paid {
			continue
		}
		unpaid = append(unpaid, inv)
	}

	logger.Infof("Fetched %d invoices, %d unpaid", len(raw), len(unpaid))

	return unpaid, nil
}

// GroupByContact converts TidyHQ invoices and groups them per contact in first-seen order.
// Invoices with an unreadable due date are skipped.
func GroupByContact(raw []domain.TidyHQInvoice, slackFieldID string) []domain.ContactInvoices {
	index := make(map[string]int)
	var groups []domain.ContactInvoices

	for _, r := range raw {
		if r.Paid {
			continue
		}

		due, err := time.ParseInLocation(dueDateLayout, r.DueDate, time.Local)
		if err != nil {
			logger.Warnf("Skipping invoice %s with unreadable due date %q: %v", r.ID, r.DueDate, err)
			continue
		}

		contactID := r.Contact.ContactIDReference.String()
		inv := domain.Invoice{
			ID:        r.ID.String(),
			Amount:    r.OutstandingAmount,
			DueDate:   due,
			ContactID: contactID,
			Name:      r.Name,
		}

		i, ok := index[contactID]
		if !ok {
			contact := domain.Contact{ID: contactID, DisplayName: r.Contact.DisplayName}
			if slackFieldID != "" {
				contact.SlackUserID = r.Contact.CustomFields[slackFieldID]
			}

			i = len(groups)
			index[contactID] = i
			groups = append(groups, domain.ContactInvoices{Contact: contact})
		}

		groups[i].Invoices = append(groups[i].Invoices, inv)
	}

	return groups
}

// FilterOverdue keeps invoices more than overdueDays past due, in order. Exactly overdueDays
// past due does not count. Returns nil when nothing qualifies.
func FilterOverdue(ci domain.ContactInvoices, now time.Time, overdueDays int) *domain.OverdueGroup {
	threshold := time.Duration(overdueDays) * 24 * time.Hour

	var overdue []domain.Invoice
	total := decimal.Zero

	for _, inv := range ci.Invoices {
		if inv.Paid || now.Sub(inv.DueDate) <= threshold {
			continue
		}
		overdue = append(overdue, inv)
		total = total.Add(inv.Amount)
	}

	if len(overdue) == 0 {
		return nil
	}

	return &domain.OverdueGroup{Contact: ci.Contact, Invoices: overdue, TotalOwed: total}
}

// Run performs one Scan-and-Post pass. The returned error wraps domain.ErrUpstreamUnavailable
// when the initial fetch fails; per-contact posting failures are logged and counted.
func (s *ScanService) Run(ctx context.Context) (*ScanReport, error) {
	now := s.now()
	report := &ScanReport{RunID: uuid.NewString(), Started: now}

	logger.Infof("[%s] Starting invoice scan", report.RunID)

	since := now.AddDate(0, 0, -s.config.Scan.LookbackDays)

	raw, err := s.FetchUnpaidInvoices(ctx, since)
	if err != nil {
		return report, err
	}

	channel := s.config.AdminChannel()

	if _, _, err := s.chat.PostMessageContext(ctx, channel,
		slack.MsgOptionText(message.Intro(s.config.Scan.OverdueDays), false)); err != nil {
		logger.Errorf("[%s] Failed to post scan intro: %v", report.RunID, err)
	}

	for _, ci := range GroupByContact(raw, s.config.TidyHQ.SlackFieldID) {
		report.Contacts++

		group := FilterOverdue(ci, now, s.config.Scan.OverdueDays)
		if group == nil {
			continue
		}

		if err := s.postSummary(ctx, channel, *group, now); err != nil {
			logger.Errorf("[%s] Failed to post summary for contact %s: %v", report.RunID, group.Contact.ID, err)
			report.Failed++
			continue
		}
		report.Posted++
	}

	logger.Infof("[%s] Scan finished: %d contacts, %d summaries posted, %d failed",
		report.RunID, report.Contacts, report.Posted, report.Failed)

	return report, nil
}

func (s *ScanService) postSummary(ctx context.Context, channel string, group domain.OverdueGroup, now time.Time) error {
	header, blocks := message.Summary(group, s.links, now)

	postedChannel, ts, err := s.chat.PostMessageContext(ctx, channel,
		slack.MsgOptionText(header, false),
		slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return err
	}

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, postedChannel, ts, group); err != nil {
			logger.Warnf("Failed to cache snapshot for contact %s: %v", group.Contact.ID, err)
		}
	}

	return nil
}
