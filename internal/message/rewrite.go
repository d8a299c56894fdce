package message

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/artifactory/invoice-reminders/internal/domain"
)

var (
	invoiceIDPattern = regexp.MustCompile(`/invoices/([a-zA-Z0-9_]*)`)
	slackLinkPattern = regexp.MustCompile(`<([^<>|]+)\|([^<>]*)>`)
)

const (
	adminInvoicePath  = "/finances/invoices/"
	publicInvoicePath = "/public/invoices/"
	headerSeparator   = " owes $"
)

// ExtractInvoiceIDs returns every non-empty invoice ID linked in text, deduplicated in order.
func ExtractInvoiceIDs(text string) []string {
	var ids []string
	seen := make(map[string]bool)

	for _, match := range invoiceIDPattern.FindAllStringSubmatch(text, -1) {
		id := match[1]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// PublicInvoiceLinks points admin invoice links at the member-facing pages.
// Applying it twice is the same as applying it once.
func PublicInvoiceLinks(text string) string {
	return strings.ReplaceAll(text, adminInvoicePath, publicInvoicePath)
}

// SlackLinksToHTML turns <url|label> into HTML anchors. Other text is left alone.
func SlackLinksToHTML(text string) string {
	return slackLinkPattern.ReplaceAllString(text, `<a href='$1'>$2</a>`)
}

func NewlinesToBR(text string) string {
	return strings.ReplaceAll(text, "\n", "<br>")
}

// ParseHeader splits "<name> owes $<rest>" into name and rest.
func ParseHeader(header string) (name, rest string, err error) {
	name, rest, ok := strings.Cut(header, headerSeparator)
	if !ok || name == "" || rest == "" {
		return "", "", fmt.Errorf("%w: header %q", domain.ErrMalformedContext, header)
	}
	return name, rest, nil
}

// InvoiceSnippet returns the invoice list from a reminder body, the second paragraph.
func InvoiceSnippet(body string) (string, error) {
	parts := strings.Split(body, "\n\n")
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: reminder body has no invoice list", domain.ErrMalformedContext)
	}
	return parts[1], nil
}
