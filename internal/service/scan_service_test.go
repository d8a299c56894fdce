package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artifactory/invoice-reminders/internal/domain"
)

var scanNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

func tidyInvoice(id, contactID, name, amount, due string, paid bool) domain.TidyHQInvoice {
	return domain.TidyHQInvoice{
		ID:                domain.FlexibleID(id),
		Name:              "Invoice " + id,
		OutstandingAmount: decimal.RequireFromString(amount),
		DueDate:           due,
		Paid:              paid,
		Contact: domain.TidyHQContact{
			ContactIDReference: domain.FlexibleID(contactID),
			DisplayName:        name,
			CustomFields:       domain.CustomFields{"slack_id": "U" + contactID},
		},
	}
}

func TestFilterOverdue_SevenDayBoundary(t *testing.T) {
	ci := domain.ContactInvoices{
		Contact: domain.Contact{ID: "42", DisplayName: "Jane Doe"},
		Invoices: []domain.Invoice{
			{ID: "exact", Amount: decimal.NewFromInt(10), DueDate: scanNow.Add(-7 * 24 * time.Hour)},
			{ID: "just_over", Amount: decimal.NewFromInt(20), DueDate: scanNow.Add(-7*24*time.Hour - time.Second)},
		},
	}

	group := FilterOverdue(ci, scanNow, 7)
	if group == nil {
		t.Fatalf("expected an overdue group")
	}
	if len(group.Invoices) != 1 || group.Invoices[0].ID != "just_over" {
		t.Fatalf("expected only just_over, got %+v", group.InvoiceIDs())
	}
	if !group.TotalOwed.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected total 20, got %s", group.TotalOwed)
	}
}

func TestFilterOverdue_NothingQualifies(t *testing.T) {
	ci := domain.ContactInvoices{
		Contact:  domain.Contact{ID: "42"},
		Invoices: []domain.Invoice{{ID: "recent", Amount: decimal.NewFromInt(5), DueDate: scanNow.AddDate(0, 0, -2)}},
	}

	if group := FilterOverdue(ci, scanNow, 7); group != nil {
		t.Fatalf("expected nil group, got %+v", group)
	}
}

func TestFilterOverdue_TotalIsSumOfListedAmounts(t *testing.T) {
	ci := domain.ContactInvoices{
		Contact: domain.Contact{ID: "42"},
		Invoices: []domain.Invoice{
			{ID: "a", Amount: decimal.RequireFromString("10.10"), DueDate: scanNow.AddDate(0, 0, -30)},
			{ID: "b", Amount: decimal.RequireFromString("0.20"), DueDate: scanNow.AddDate(0, 0, -30)},
			{ID: "c", Amount: decimal.RequireFromString("99"), DueDate: scanNow.AddDate(0, 0, -1)},
		},
	}

	group := FilterOverdue(ci, scanNow, 7)
	if group.TotalOwed.StringFixed(2) != "10.30" {
		t.Fatalf("expected 10.30, got %s", group.TotalOwed.StringFixed(2))
	}
}

func TestGroupByContact_FirstSeenOrderAndPaidExcluded(t *testing.T) {
	raw := []domain.TidyHQInvoice{
		tidyInvoice("1", "7", "Bob", "5", "2024-01-01", false),
		tidyInvoice("2", "42", "Jane Doe", "50", "2024-01-01", false),
		tidyInvoice("3", "7", "Bob", "6", "2024-01-02", false),
		tidyInvoice("4", "42", "Jane Doe", "70", "2024-01-01", true),
		tidyInvoice("5", "42", "Jane Doe", "1", "not-a-date", false),
	}

	groups := GroupByContact(raw, "slack_id")
	if len(groups) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(groups))
	}
	if groups[0].Contact.ID != "7" || groups[1].Contact.ID != "42" {
		t.Fatalf("expected first-seen order 7,42 got %s,%s", groups[0].Contact.ID, groups[1].Contact.ID)
	}
	if len(groups[0].Invoices) != 2 || groups[0].Invoices[1].ID != "3" {
		t.Fatalf("unexpected invoices for Bob: %+v", groups[0].Invoices)
	}
	if len(groups[1].Invoices) != 1 || groups[1].Invoices[0].ID != "2" {
		t.Fatalf("expected only unpaid invoice 2 for Jane, got %+v", groups[1].Invoices)
	}
	if groups[1].Contact.SlackUserID != "U42" {
		t.Errorf("expected slack id from custom field, got %q", groups[1].Contact.SlackUserID)
	}
}

func TestRun_PostsIntroAndOverdueSummaries(t *testing.T) {
	billing := &fakeBilling{
		invoices: []domain.TidyHQInvoice{
			tidyInvoice("inv_1", "42", "Jane Doe", "50", "2024-02-20", false),
			tidyInvoice("inv_2", "42", "Jane Doe", "70", "2024-02-01", false),
			tidyInvoice("inv_3", "42", "Jane Doe", "500", "2024-02-01", true),
			tidyInvoice("inv_4", "7", "Bob", "25", "2024-02-28", false),
		},
	}
	chat := &fakeChat{}
	snapshots := &fakeSnapshots{}

	svc := NewScanService(billing, chat, snapshots, testConfig())
	svc.now = func() time.Time { return scanNow }

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Contacts != 2 || report.Posted != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.RunID == "" {
		t.Errorf("expected a run id")
	}
	if want := scanNow.AddDate(0, 0, -90); !billing.since.Equal(want) {
		t.Errorf("expected lookback to %v, got %v", want, billing.since)
	}

	posts := chat.postsTo("CADMIN")
	if len(posts) != 2 {
		t.Fatalf("expected intro + 1 summary, got %d: %v", len(posts), posts)
	}
	if posts[0] != "This is a list of contacts with invoices at least 7 days overdue." {
		t.Errorf("unexpected intro %q", posts[0])
	}
	if posts[1] != "Jane Doe owes $120.00 across 2 invoices" {
		t.Errorf("unexpected summary text %q", posts[1])
	}
	if !strings.Contains(chat.posts[1].blocks, "42_U42") {
		t.Errorf("expected slack remind payload in blocks: %s", chat.posts[1].blocks)
	}

	if len(snapshots.saved) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snapshots.saved))
	}
	for key, group := range snapshots.saved {
		if !strings.HasPrefix(key, "CADMIN:") {
			t.Errorf("unexpected snapshot key %q", key)
		}
		if group.TotalOwed.StringFixed(2) != "120.00" {
			t.Errorf("unexpected snapshot total %s", group.TotalOwed)
		}
	}
}

func TestRun_UpstreamUnavailable(t *testing.T) {
	billing := &fakeBilling{listErr: fmt.Errorf("%w: status 502", domain.ErrUpstreamUnavailable)}
	chat := &fakeChat{}

	svc := NewScanService(billing, chat, nil, testConfig())

	_, err := svc.Run(context.Background())
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if len(chat.posts) != 0 {
		t.Fatalf("expected nothing posted, got %d messages", len(chat.posts))
	}
}

func TestRun_PostFailureIsCounted(t *testing.T) {
	billing := &fakeBilling{
		invoices: []domain.TidyHQInvoice{tidyInvoice("inv_1", "42", "Jane Doe", "50", "2024-01-01", false)},
	}
	chat := &fakeChat{postErr: errors.New("channel_not_found")}

	svc := NewScanService(billing, chat, nil, testConfig())
	svc.now = func() time.Time { return scanNow }

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Failed != 1 || report.Posted != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
