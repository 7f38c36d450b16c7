// Package queue ranks tickets for triage.
package queue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/workorder-service/internal/domain"
)

var priorityRank = map[domain.TicketPriority]int{
	domain.TicketPriorityUrgent: 1,
	domain.TicketPriorityHigh:   2,
	domain.TicketPriorityMedium: 3,
	domain.TicketPriorityLow:    4,
}

// unknownRank sorts unrecognised priorities after LOW.
const unknownRank = 5

// PriorityRank returns the triage rank of p, lower is more urgent.
func PriorityRank(p domain.TicketPriority) int {
	if rank, ok := priorityRank[p]; ok {
		return rank
	}
	return unknownRank
}

// Less orders by priority rank, then earliest due date, then newest first.
func Less(a, b *domain.Ticket) bool {
	ra, rb := PriorityRank(a.Priority), PriorityRank(b.Priority)
	if ra != rb {
		return ra < rb
	}
	if !a.DueAt.Equal(b.DueAt) {
		return a.DueAt.Before(b.DueAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// Sort ranks tickets in place.
func Sort(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return Less(&tickets[i], &tickets[j])
	})
}

// PriorityRankSQL renders the rank table as a CASE expression over column, so
// SQL ordering uses the same ranks as Less.
func PriorityRankSQL(column string) string {
	priorities := []domain.TicketPriority{
		domain.TicketPriorityUrgent,
		domain.TicketPriorityHigh,
		domain.TicketPriorityMedium,
		domain.TicketPriorityLow,
	}
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for _, p := range priorities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, priorityRank[p])
	}
	fmt.Fprintf(&b, " ELSE %d END", unknownRank)
	return b.String()
}

// OrderBySQL is the full queue ordering for the tickets table.
func OrderBySQL(alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	return fmt.Sprintf("%s ASC, %sdue_at ASC, %screated_at DESC",
		PriorityRankSQL(prefix+"priority"), prefix, prefix)
}
