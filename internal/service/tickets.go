package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

var ticketPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// RegexTicketCompleter extracts ticket keys such as ABC-123 from pull request
// titles and descriptions.
type RegexTicketCompleter struct {
	baseURL string
}

// NewRegexTicketCompleter creates a completer. When baseURL is set, ticket
// URLs are baseURL followed by the ticket key.
func NewRegexTicketCompleter(baseURL string) *RegexTicketCompleter {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RegexTicketCompleter{baseURL: baseURL}
}

// CompleteTickets sets Tickets on every pull request, in order of first appearance.
func (c *RegexTicketCompleter) CompleteTickets(_ context.Context, prs []domain.PullRequest) error {
	for i := range prs {
		prs[i].Tickets = c.extract(prs[i].Title + "\n" + prs[i].Description)
	}
	return nil
}

func (c *RegexTicketCompleter) extract(text string) []domain.Ticket {
	var tickets []domain.Ticket
	seen := make(map[string]bool)
	for _, key := range ticketPattern.FindAllString(text, -1) {
		if seen[key] {
			continue
		}
		seen[key] = true
		ticket := domain.Ticket{ID: key}
		if c.baseURL != "" {
			ticket.URL = c.baseURL + key
		}
		tickets = append(tickets, ticket)
	}
	return tickets
}
