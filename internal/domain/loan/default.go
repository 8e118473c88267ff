package loan

import "time"

// FirstOverdue returns the index of the first unpaid installment whose due
// date is strictly before now, or -1. Non-active loans never have one.
func (l *Loan) FirstOverdue(now time.Time) int {
	if l.Status != StatusActive {
		return -1
	}
	for i, p := range l.Schedule {
		if !p.Paid && now.After(p.DueDate) {
			return i
		}
	}
	return -1
}

func (l *Loan) IsOverdue(now time.Time) bool { return l.FirstOverdue(now) >= 0 }

// EffectiveStatus is the stored status, except that an overdue active loan
// reads as StatusDefaulted. Nothing persists the derived value.
func (l *Loan) EffectiveStatus(now time.Time) Status {
	if l.IsOverdue(now) {
		return StatusDefaulted
	}
	return l.Status
}
