package service

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Today is the UTC calendar date of t, at midnight.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueDate is issueDate plus issueDays calendar days.
func DueDate(issueDate time.Time, issueDays int) time.Time {
	return Today(issueDate).AddDate(0, 0, issueDays)
}

// DaysOverdue is the whole number of days returnDate lies after dueDate, never negative.
func DaysOverdue(dueDate, returnDate time.Time) int {
	diff := Today(returnDate).Sub(Today(dueDate))
	if diff <= 0 {
		return 0
	}
	return int(diff / day)
}

// Fine is DaysOverdue × perDay, rounded to cents.
func Fine(dueDate, returnDate time.Time, perDay float64) float64 {
	days := DaysOverdue(dueDate, returnDate)
	if days == 0 || perDay <= 0 {
		return 0
	}
	return math.Round(float64(days)*perDay*100) / 100
}
