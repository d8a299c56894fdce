package tidyhq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(environments.TidyHQConfig{
		Token:   "secret-token",
		APIURL:  server.URL,
		Timeout: 5 * time.Second,
	})
}

func TestListInvoices_SendsTokenAndDecodes(t *testing.T) {
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/invoices" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("access_token") != "secret-token" {
			t.Errorf("expected access token, got %q", q.Get("access_token"))
		}
		if q.Get("limit") != "10000" {
			t.Errorf("expected limit=10000, got %q", q.Get("limit"))
		}
		if q.Get("updated_since") != "2024-01-02T03:04:05Z" {
			t.Errorf("unexpected updated_since %q", q.Get("updated_since"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": "INV1", "name": "Fees", "outstanding_amount": 20, "due_date": "2024-01-01",
			"paid": false, "contact": {"contact_id_reference": 5, "display_name": "Jane Doe", "custom_fields": {}}}]`))
	})

	invoices, err := client.ListInvoices(context.Background(), since)
	if err != nil {
		t.Fatalf("ListInvoices returned error: %v", err)
	}

	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	if invoices[0].ID != "INV1" || invoices[0].Contact.ContactIDReference != "5" {
		t.Errorf("unexpected invoice %+v", invoices[0])
	}
}

func TestListInvoices_ErrorStatusIsUpstreamUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListInvoices(context.Background(), time.Now())
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestListInvoices_UnreachableIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(environments.TidyHQConfig{Token: "t", APIURL: url, Timeout: time.Second})

	_, err := client.ListInvoices(context.Background(), time.Now())
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAddInvoiceNote_PostsText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/invoices/INV1/note" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("text"); got != "reminded" {
			t.Errorf("expected note text, got %q", got)
		}
		w.WriteHeader(http.StatusCreated)
	})

	if err := client.AddInvoiceNote(context.Background(), "INV1", "reminded"); err != nil {
		t.Fatalf("AddInvoiceNote returned error: %v", err)
	}
}

func TestDeleteInvoice_ReportsErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/invoices/INV9" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if err := client.DeleteInvoice(context.Background(), "INV9"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestSendEmail_PostsContactAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm["contacts[]"]; len(got) != 1 || got[0] != "42" {
			t.Errorf("expected contacts[]=42, got %v", got)
		}
		if r.PostForm.Get("subject") != "Reminder" {
			t.Errorf("unexpected subject %q", r.PostForm.Get("subject"))
		}
		if r.PostForm.Get("body") != "Hello<br>there" {
			t.Errorf("unexpected body %q", r.PostForm.Get("body"))
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.SendEmail(context.Background(), "42", "Reminder", "Hello<br>there"); err != nil {
		t.Fatalf("SendEmail returned error: %v", err)
	}
}
