package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sitecraft/reminders/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysUntilDue(t *testing.T) {
	tests := []struct {
		name  string
		due   time.Time
		today time.Time
		want  int
	}{
		{"due in a week", date(2026, 3, 10), date(2026, 3, 3), 7},
		{"due today", date(2026, 3, 3), date(2026, 3, 3), 0},
		{"overdue by one day", date(2026, 3, 2), date(2026, 3, 3), -1},
		{"overdue across month boundary", date(2026, 2, 27), date(2026, 3, 3), -4},
		{"time-of-day ignored", date(2026, 3, 10).Add(23 * time.Hour), date(2026, 3, 9).Add(1 * time.Minute), 1},
		{"non-UTC input reduced to UTC date", time.Date(2026, 3, 10, 1, 0, 0, 0, time.FixedZone("UTC+10", 10*3600)), date(2026, 3, 3), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntilDue(tt.due, tt.today))
		})
	}
}

func TestClassify(t *testing.T) {
	daysBefore := []int32{7, 3, 1}
	daysAfter := []int32{1, 3, 7, 14, 30}
	today := date(2026, 3, 15)

	tests := []struct {
		name string
		due  time.Time
		want domain.Bucket
	}{
		{"7 days before due", date(2026, 3, 22), domain.BucketUpcoming},
		{"3 days before due", date(2026, 3, 18), domain.BucketUpcoming},
		{"1 day before due", date(2026, 3, 16), domain.BucketUpcoming},
		{"5 days before due not configured", date(2026, 3, 20), domain.BucketNone},
		{"far future", date(2026, 6, 1), domain.BucketNone},
		{"due today fires without any offset", date(2026, 3, 15), domain.BucketDueToday},
		{"1 day overdue", date(2026, 3, 14), domain.BucketOverdue},
		{"7 days overdue", date(2026, 3, 8), domain.BucketOverdue},
		{"13 days overdue not configured", date(2026, 3, 2), domain.BucketNone},
		{"14 days overdue escalates", date(2026, 3, 1), domain.BucketFinalNotice},
		{"30 days overdue stays final notice", date(2026, 2, 13), domain.BucketFinalNotice},
		{"2 days overdue not configured", date(2026, 3, 13), domain.BucketNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.due, today, daysBefore, daysAfter))
		})
	}
}

func TestClassify_EmptyOffsets(t *testing.T) {
	today := date(2026, 3, 15)

	// With no offsets configured only due_today ever fires.
	assert.Equal(t, domain.BucketNone, Classify(date(2026, 3, 22), today, nil, nil))
	assert.Equal(t, domain.BucketNone, Classify(date(2026, 3, 1), today, nil, nil))
	assert.Equal(t, domain.BucketDueToday, Classify(today, today, nil, nil))
}

func TestClassify_ThresholdRequiresMatchingOffset(t *testing.T) {
	today := date(2026, 3, 15)

	// 20 days overdue is past the final-notice threshold, but 20 is not
	// a configured offset, so nothing fires.
	got := Classify(date(2026, 2, 23), today, nil, []int32{1, 3, 7, 14, 30})
	assert.Equal(t, domain.BucketNone, got)
}

func TestClassifyForSend(t *testing.T) {
	today := date(2026, 3, 15)

	tests := []struct {
		name string
		due  time.Time
		want domain.Bucket
	}{
		{"any future date is upcoming", date(2026, 3, 20), domain.BucketUpcoming},
		{"due today", date(2026, 3, 15), domain.BucketDueToday},
		{"1 day overdue", date(2026, 3, 14), domain.BucketOverdue},
		{"13 days overdue still overdue", date(2026, 3, 2), domain.BucketOverdue},
		{"14 days overdue is final notice", date(2026, 3, 1), domain.BucketFinalNotice},
		{"90 days overdue is final notice", date(2025, 12, 15), domain.BucketFinalNotice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyForSend(tt.due, today))
		})
	}
}

func TestBucketValid(t *testing.T) {
	assert.True(t, domain.BucketUpcoming.Valid())
	assert.True(t, domain.BucketDueToday.Valid())
	assert.True(t, domain.BucketOverdue.Valid())
	assert.True(t, domain.BucketFinalNotice.Valid())
	assert.False(t, domain.BucketNone.Valid())
	assert.False(t, domain.Bucket("friendly_nudge").Valid())
}
