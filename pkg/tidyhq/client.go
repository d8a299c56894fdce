package tidyhq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/pkg/logger"
)

// InvoiceFetchLimit is the page size requested from the invoices endpoint.
const InvoiceFetchLimit = 10000

// Client talks to the TidyHQ REST API.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(cfg environments.TidyHQConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetQueryParam("access_token", cfg.Token)

	return &Client{
		httpClient: client,
		baseURL:    cfg.APIURL,
	}
}

// ListInvoices fetches invoices updated since the given time. Any transport failure or
// error status wraps domain.ErrUpstreamUnavailable.
func (c *Client) ListInvoices(ctx context.Context, updatedSince time.Time) ([]domain.TidyHQInvoice, error) {
	var invoices []domain.TidyHQInvoice

	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":         strconv.Itoa(InvoiceFetchLimit),
			"updated_since": updatedSince.Format(time.RFC3339),
		}).
		SetResult(&invoices).
		Get("/invoices")

	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	logger.Infof("TidyHQ invoice fetch completed in %v (status: %d)", time.Since(startTime), resp.StatusCode())

	if resp.IsError() {
		return nil, fmt.Errorf("%w: unexpected status code %d, body: %s",
			domain.ErrUpstreamUnavailable, resp.StatusCode(), resp.String())
	}

	return invoices, nil
}

// AddInvoiceNote attaches an audit note to an invoice.
func (c *Client) AddInvoiceNote(ctx context.Context, invoiceID, text string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", invoiceID).
		SetFormData(map[string]string{"text": text}).
		Post("/invoices/{id}/note")

	return checkResponse("add note to invoice "+invoiceID, resp, err)
}

func (c *Client) DeleteInvoice(ctx context.Context, invoiceID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", invoiceID).
		Delete("/invoices/{id}")

	return checkResponse("delete invoice "+invoiceID, resp, err)
}

// SendEmail emails a contact through TidyHQ. body is HTML.
func (c *Client) SendEmail(ctx context.Context, contactID, subject, body string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormDataFromValues(url.Values{
			"subject":    {subject},
			"body":       {body},
			"contacts[]": {contactID},
		}).
		Post("/emails")

	return checkResponse("send email to contact "+contactID, resp, err)
}

func (c *Client) GetURL() string {
	return c.baseURL
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	logger.Debugf("TidyHQ %s %s -> %d", resp.Request.Method, resp.Request.URL, resp.StatusCode())

	if resp.IsError() {
		return fmt.Errorf("failed to %s: unexpected status code %d, body: %s", op, resp.StatusCode(), resp.String())
	}

	return nil
}
