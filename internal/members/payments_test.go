package members

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "Not recorded", FormatCurrency(nil))
	assert.Equal(t, "£12.50", FormatCurrency(ptr(12.5)))
	assert.Equal(t, "£40.00", FormatCurrency(ptr(40.0)))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "Not recorded", FormatDate(nil))
	assert.Equal(t, "2 January 2025", FormatDate(ptr(time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC))))
}

func TestOverdueRules(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rule OverdueRule
		now  time.Time
		want bool
	}{
		{"strict before", RuleStrict, due.Add(-time.Hour), false},
		{"strict after", RuleStrict, due.Add(time.Hour), true},
		{"grace inside window", RuleGrace, due.AddDate(0, 0, 20), false},
		{"grace past window", RuleGrace, due.AddDate(0, 0, 29), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.IsOverdue(due, tt.now))
		})
	}
	assert.False(t, RuleStrict.IsOverdue(time.Time{}, due))
}

func TestParseOverdueRule(t *testing.T) {
	r, err := ParseOverdueRule("")
	require.NoError(t, err)
	assert.Equal(t, RuleGrace, r)
	r, err = ParseOverdueRule(" Strict ")
	require.NoError(t, err)
	assert.Equal(t, RuleStrict, r)
	_, err = ParseOverdueRule("lenient")
	assert.Error(t, err)
}

func TestTimelineNewestFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &Member{
		PaymentAmount:              ptr(10.0),
		PaymentType:                ptr("cash"),
		PaymentDate:                ptr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		YearlyPaymentDueDate:       ptr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		YearlyPaymentStatus:        ptr("pending"),
		EmergencyCollectionAmount:  ptr(5.0),
		EmergencyCollectionDueDate: ptr(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)),
		EmergencyCollectionStatus:  ptr("completed"),
	}

	got := Timeline(m, RuleGrace, now)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"emergency", "payment", "yearly"}, []string{got[0].Kind, got[1].Kind, got[2].Kind})
	assert.Equal(t, "£40.00", got[2].Amount)
	assert.True(t, got[2].Overdue)
	assert.False(t, got[0].Overdue)
	assert.Equal(t, "1 March 2025", got[1].Display)
}

func TestTimelineEmpty(t *testing.T) {
	got := Timeline(&Member{}, RuleStrict, time.Now())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestYearlyDueDate(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), YearlyDueDate(time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)))
}
