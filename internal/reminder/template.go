package reminder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sitecraft/reminders/internal/domain"
)

// The fixed placeholder vocabulary. Every key is substituted into both
// subject and body on every render, whether or not it appears.
var placeholderKeys = []string{
	"invoice_number",
	"amount",
	"due_date",
	"client_name",
	"sender_name",
	"days_overdue",
	"payment_link",
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// DefaultTemplates returns the built-in subject/body pair for each
// bucket, used whenever a tenant has not customized that bucket.
func DefaultTemplates() map[domain.Bucket]domain.TemplatePair {
	return map[domain.Bucket]domain.TemplatePair{
		domain.BucketUpcoming: {
			Subject: "Payment reminder: invoice {invoice_number} due {due_date}",
			Body: "Hi {client_name},\n\n" +
				"This is a friendly reminder that invoice {invoice_number} for {amount} is due on {due_date}.\n\n" +
				"{payment_link}\n" +
				"Thank you,\n{sender_name}",
		},
		domain.BucketDueToday: {
			Subject: "Invoice {invoice_number} is due today",
			Body: "Hi {client_name},\n\n" +
				"Invoice {invoice_number} for {amount} is due today, {due_date}.\n\n" +
				"{payment_link}\n" +
				"Thank you,\n{sender_name}",
		},
		domain.BucketOverdue: {
			Subject: "Overdue: invoice {invoice_number} was due {due_date}",
			Body: "Hi {client_name},\n\n" +
				"Invoice {invoice_number} for {amount} was due on {due_date} and is now {days_overdue} day(s) overdue. " +
				"Please arrange payment at your earliest convenience.\n\n" +
				"{payment_link}\n" +
				"Thank you,\n{sender_name}",
		},
		domain.BucketFinalNotice: {
			Subject: "Final notice: invoice {invoice_number} is {days_overdue} days overdue",
			Body: "Dear {client_name},\n\n" +
				"This is a final notice for invoice {invoice_number} in the amount of {amount}, due {due_date} " +
				"and now {days_overdue} days past due. Please settle the balance immediately to avoid " +
				"interruption of work and collection proceedings.\n\n" +
				"{payment_link}\n" +
				"Regards,\n{sender_name}",
		},
	}
}

// ValidateTemplates rejects template pairs referencing placeholder
// keys outside the fixed vocabulary. Run against the defaults at
// startup and against tenant templates on every settings update.
func ValidateTemplates(templates map[domain.Bucket]domain.TemplatePair) error {
	known := make(map[string]bool, len(placeholderKeys))
	for _, key := range placeholderKeys {
		known[key] = true
	}

	for bucket, pair := range templates {
		if !bucket.Valid() {
			return fmt.Errorf("unknown reminder type %q", bucket)
		}
		for _, match := range placeholderPattern.FindAllStringSubmatch(pair.Subject+" "+pair.Body, -1) {
			if !known[match[1]] {
				return fmt.Errorf("template for %q references unknown placeholder {%s}", bucket, match[1])
			}
		}
	}
	return nil
}

// Renderer produces reminder subject/body text from an invoice, a
// tenant's settings and a bucket. Rendering is total: missing optional
// fields substitute an empty string or a safe default, never an error.
type Renderer struct {
	baseURL string
}

// NewRenderer creates a renderer. baseURL is the public site URL that
// payment links are built from.
func NewRenderer(baseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Render selects the template pair for the bucket (tenant override
// first, built-in default otherwise) and substitutes every placeholder
// into both subject and body.
func (r *Renderer) Render(inv *domain.Invoice, settings *domain.ReminderSettings, bucket domain.Bucket, daysUntilDue int) (subject, body string) {
	pair, ok := settings.Templates[bucket]
	if !ok || (pair.Subject == "" && pair.Body == "") {
		pair = DefaultTemplates()[bucket]
	}

	daysOverdue := 0
	if daysUntilDue < 0 {
		daysOverdue = -daysUntilDue
	}

	dueDate := ""
	if inv.DueDate != nil {
		dueDate = inv.DueDate.UTC().Format("January 2, 2006")
	}

	paymentLink := ""
	if settings.IncludePaymentLink {
		paymentLink = fmt.Sprintf("Pay online: %s/invoices/%s/pay", r.baseURL, inv.ID)
	}

	replacer := strings.NewReplacer(
		"{invoice_number}", inv.Number,
		"{amount}", FormatCents(inv.AmountCents),
		"{due_date}", dueDate,
		"{client_name}", inv.ClientDisplayName(),
		"{sender_name}", settings.SenderName,
		"{days_overdue}", fmt.Sprintf("%d", daysOverdue),
		"{payment_link}", paymentLink,
	)

	return replacer.Replace(pair.Subject), replacer.Replace(pair.Body)
}

// FormatCents renders a cent amount as a dollar string with thousands
// separators, e.g. 1234567 -> "$12,345.67".
func FormatCents(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	dollars := cents / 100
	remainder := cents % 100

	digits := fmt.Sprintf("%d", dollars)
	var grouped strings.Builder
	for i, ch := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(ch)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d", sign, grouped.String(), remainder)
}
