package domain

import (
	"encoding/json"
	"testing"
)

func TestTidyHQInvoice_DecodesNumericIDsAndObjectCustomFields(t *testing.T) {
	raw := `{
		"id": 1234,
		"name": "Membership 2024",
		"outstanding_amount": 50.5,
		"due_date": "2024-01-01",
		"paid": false,
		"contact": {
			"contact_id_reference": 987,
			"display_name": "Jane Doe",
			"custom_fields": {"slack_id": {"value": "U123"}, "empty": {"value": null}}
		}
	}`

	var inv TidyHQInvoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if inv.ID != "1234" {
		t.Errorf("expected id 1234, got %q", inv.ID)
	}
	if inv.Contact.ContactIDReference != "987" {
		t.Errorf("expected contact 987, got %q", inv.Contact.ContactIDReference)
	}
	if inv.OutstandingAmount.StringFixed(2) != "50.50" {
		t.Errorf("expected 50.50, got %s", inv.OutstandingAmount.StringFixed(2))
	}
	if got := inv.Contact.CustomFields["slack_id"]; got != "U123" {
		t.Errorf("expected slack_id U123, got %q", got)
	}
	if _, ok := inv.Contact.CustomFields["empty"]; ok {
		t.Errorf("expected null custom field to be dropped")
	}
}

func TestCustomFields_DecodesListForm(t *testing.T) {
	var fields CustomFields
	raw := `[{"id": "slack_id", "value": "U999"}, {"id": 7, "value": 42}]`
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if fields["slack_id"] != "U999" {
		t.Errorf("expected U999, got %q", fields["slack_id"])
	}
	if fields["7"] != "42" {
		t.Errorf("expected numeric value to be kept as text, got %q", fields["7"])
	}
}

func TestParseButtonPayload(t *testing.T) {
	p, err := ParseButtonPayload("987_U123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ContactID != "987" || p.SlackUserID != "U123" {
		t.Fatalf("unexpected payload %+v", p)
	}

	if p.String() != "987_U123" {
		t.Errorf("expected round trip, got %q", p.String())
	}

	if got := (ButtonPayload{ContactID: "5"}).String(); got != "5_NOSLACKID" {
		t.Errorf("expected sentinel payload, got %q", got)
	}

	if _, err := ParseButtonPayload("garbage"); err == nil {
		t.Errorf("expected error for payload without separator")
	}
}

func TestActionOutcome_AggregatesFailures(t *testing.T) {
	outcome := NewActionOutcome("delete_invoices")
	outcome.Record("INV-A", "delete", nil)
	outcome.Record("INV-B", "delete", errTest)
	outcome.Record("INV-B", "note", errTest)

	err := outcome.Err()
	pf, ok := err.(*PartialFailureError)
	if !ok {
		t.Fatalf("expected *PartialFailureError, got %T", err)
	}
	if pf.SucceededCount != 1 {
		t.Errorf("expected 1 success, got %d", pf.SucceededCount)
	}
	if ids := pf.FailedIDs(); len(ids) != 1 || ids[0] != "INV-B" {
		t.Errorf("expected failed IDs [INV-B], got %v", ids)
	}

	if len(pf.ChatFailures) != 0 {
		t.Errorf("expected no chat failures, got %v", pf.ChatFailures)
	}

	if NewActionOutcome("noop").Err() != nil {
		t.Errorf("expected nil error for empty outcome")
	}
}

func TestActionOutcome_ChatStepsAreNotInvoices(t *testing.T) {
	outcome := NewActionOutcome("tidyhq_remind")
	outcome.RecordChat("CADMIN", "notify", nil)
	outcome.Record("INV-A", "note", nil)
	outcome.Record("INV-B", "note", errTest)

	pf, ok := outcome.Err().(*PartialFailureError)
	if !ok {
		t.Fatalf("expected *PartialFailureError, got %T", outcome.Err())
	}
	if pf.SucceededCount != 1 || pf.InvoiceCount() != 2 {
		t.Errorf("expected 1 of 2 invoices to succeed, got %d of %d", pf.SucceededCount, pf.InvoiceCount())
	}
	if ids := pf.FailedIDs(); len(ids) != 1 || ids[0] != "INV-B" {
		t.Errorf("expected failed IDs [INV-B], got %v", ids)
	}

	chatOnly := NewActionOutcome("already_paid")
	chatOnly.RecordChat("CADMIN", "notify", errTest)

	pf, ok = chatOnly.Err().(*PartialFailureError)
	if !ok {
		t.Fatalf("expected *PartialFailureError for a failed chat step, got %T", chatOnly.Err())
	}
	if pf.InvoiceCount() != 0 || len(pf.FailedIDs()) != 0 {
		t.Errorf("expected no invoices involved, got %+v", pf)
	}
	if steps := pf.ChatSteps(); len(steps) != 1 || steps[0] != "notify" {
		t.Errorf("expected chat steps [notify], got %v", steps)
	}
}

type testError struct{}

func (testError) Error() string { return "boom" }

var errTest = testError{}
