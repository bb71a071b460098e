package members

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultYearlyAmount = 40.0
	GraceDays           = 28
)

// OverdueRule decides when a due date has been missed.
type OverdueRule string

const (
	// RuleGrace allows GraceDays after the due date before a payment is overdue.
	RuleGrace  OverdueRule = "grace"
	RuleStrict OverdueRule = "strict"
)

func ParseOverdueRule(s string) (OverdueRule, error) {
	switch OverdueRule(strings.ToLower(strings.TrimSpace(s))) {
	case RuleGrace, "":
		return RuleGrace, nil
	case RuleStrict:
		return RuleStrict, nil
	}
	return "", fmt.Errorf("unknown overdue rule %q", s)
}

func (r OverdueRule) IsOverdue(due, now time.Time) bool {
	if due.IsZero() {
		return false
	}
	if r == RuleStrict {
		return now.After(due)
	}
	return now.After(due.AddDate(0, 0, GraceDays))
}

func FormatCurrency(amount *float64) string {
	if amount == nil {
		return "Not recorded"
	}
	return fmt.Sprintf("£%.2f", *amount)
}

func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Not recorded"
	}
	return t.Format("2 January 2006")
}

// YearlyDueDate is 1 January of the year after now.
func YearlyDueDate(now time.Time) time.Time {
	return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

type TimelineEntry struct {
	Kind    string    `json:"kind"`
	Amount  string    `json:"amount"`
	Date    time.Time `json:"date"`
	Display string    `json:"display_date"`
	Status  string    `json:"status"`
	Overdue bool      `json:"overdue"`
}

// Timeline lists the payments recorded against m, newest first.
// Entries without a date are left out.
func Timeline(m *Member, rule OverdueRule, now time.Time) []TimelineEntry {
	out := []TimelineEntry{}
	if m.PaymentDate != nil {
		out = append(out, TimelineEntry{
			Kind:    "payment",
			Amount:  FormatCurrency(m.PaymentAmount),
			Date:    *m.PaymentDate,
			Display: FormatDate(m.PaymentDate),
			Status:  strings.TrimSpace(Str(m.PaymentType)),
		})
	}
	if m.YearlyPaymentDueDate != nil {
		status := Str(m.YearlyPaymentStatus)
		out = append(out, TimelineEntry{
			Kind:    "yearly",
			Amount:  FormatCurrency(yearlyAmount(m)),
			Date:    *m.YearlyPaymentDueDate,
			Display: FormatDate(m.YearlyPaymentDueDate),
			Status:  status,
			Overdue: status != "completed" && rule.IsOverdue(*m.YearlyPaymentDueDate, now),
		})
	}
	if m.EmergencyCollectionDueDate != nil {
		status := Str(m.EmergencyCollectionStatus)
		out = append(out, TimelineEntry{
			Kind:    "emergency",
			Amount:  FormatCurrency(m.EmergencyCollectionAmount),
			Date:    *m.EmergencyCollectionDueDate,
			Display: FormatDate(m.EmergencyCollectionDueDate),
			Status:  status,
			Overdue: status != "completed" && rule.IsOverdue(*m.EmergencyCollectionDueDate, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func yearlyAmount(m *Member) *float64 {
	if m.YearlyPaymentAmount != nil {
		return m.YearlyPaymentAmount
	}
	v := DefaultYearlyAmount
	return &v
}
