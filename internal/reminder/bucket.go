package reminder

import (
	"time"

	"github.com/sitecraft/reminders/internal/domain"
)

// FinalNoticeAfterDays is the overdue threshold at which a matching
// days-after offset escalates from an overdue reminder to a final
// notice. Product treats this as fixed policy, not tenant config.
const FinalNoticeAfterDays = 14

// UTCDate truncates t to its UTC calendar date. All day arithmetic in
// this package (classification and same-day dedup) runs on UTC dates,
// never on the ambient system timezone.
func UTCDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntilDue returns the whole-day distance from today to the due
// date, negative when the invoice is past due. Both arguments are
// reduced to UTC dates before subtracting.
func DaysUntilDue(dueDate, today time.Time) int {
	return int(UTCDate(dueDate).Sub(UTCDate(today)).Hours() / 24)
}

// Classify decides which reminder bucket applies to an invoice today.
//
//   - Before the due date, a reminder fires only on the configured
//     days-before offsets.
//   - On the due date, due_today fires unconditionally.
//   - After the due date, a reminder fires only on the configured
//     days-after offsets, escalating to final_notice at
//     FinalNoticeAfterDays and beyond.
func Classify(dueDate, today time.Time, daysBefore, daysAfter []int32) domain.Bucket {
	daysUntil := DaysUntilDue(dueDate, today)

	switch {
	case daysUntil > 0:
		if containsOffset(daysBefore, daysUntil) {
			return domain.BucketUpcoming
		}
		return domain.BucketNone
	case daysUntil == 0:
		return domain.BucketDueToday
	default:
		daysOverdue := -daysUntil
		if !containsOffset(daysAfter, daysOverdue) {
			return domain.BucketNone
		}
		if daysOverdue >= FinalNoticeAfterDays {
			return domain.BucketFinalNotice
		}
		return domain.BucketOverdue
	}
}

// ClassifyForSend picks a bucket for a manually triggered send. Unlike
// Classify it ignores the offset sets, so a manual send never fails
// just because today is not a scheduled reminder day.
func ClassifyForSend(dueDate, today time.Time) domain.Bucket {
	daysUntil := DaysUntilDue(dueDate, today)

	switch {
	case daysUntil > 0:
		return domain.BucketUpcoming
	case daysUntil == 0:
		return domain.BucketDueToday
	case -daysUntil >= FinalNoticeAfterDays:
		return domain.BucketFinalNotice
	default:
		return domain.BucketOverdue
	}
}

func containsOffset(offsets []int32, days int) bool {
	for _, offset := range offsets {
		if int(offset) == days {
			return true
		}
	}
	return false
}
