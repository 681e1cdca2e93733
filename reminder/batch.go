package reminder

import (
	"context"
	"log"
	"pagobot/model"
	"time"
)

// Rule picks batch targets. Offset 0 means due today, N > 0 due in N days,
// N < 0 overdue by -N days.
type Rule struct {
	Offset int `json:"offset"`
}

// Due reports whether rec falls on the rule's target day relative to now.
// A pay day past the end of the month counts as the month's last day.
// Clients with a confirmed payment in the target month are not due.
func (r Rule) Due(rec model.ClientRecord, now time.Time) bool {
	if rec.PendingSetup || rec.PayDay < 1 || rec.PayDay > 31 {
		return false
	}
	target := now.AddDate(0, 0, r.Offset)
	day := rec.PayDay
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	if target.Day() != day {
		return false
	}
	return !rec.ConfirmedIn(target.Year(), target.Month())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Report aggregates a batch run.
type Report struct {
	Rule     Rule      `json:"rule"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Outcomes []Outcome `json:"outcomes"`
}

// Select splits clients into batch targets and suspended skips.
func Select(clients []model.Client, rule Rule, now time.Time) (targets []model.Client, skipped []Outcome) {
	for _, c := range clients {
		if c.Suspended {
			skipped = append(skipped, Outcome{Key: c.Key, Name: c.Name, Status: StatusSuspended})
			continue
		}
		if rule.Due(c.ClientRecord, now) {
			targets = append(targets, c)
		}
	}
	return targets, skipped
}

// RunBatch sends reminders to every due client, strictly one after another
// with the dispatcher delay in between. A failed recipient does not stop the
// batch; cancelling ctx stops it before the next send.
func (d *Dispatcher) RunBatch(ctx context.Context, clients []model.Client, rule Rule) Report {
	targets, skipped := Select(clients, rule, d.now())
	report := Report{Rule: rule, Skipped: len(skipped), Outcomes: skipped}
	log.Printf("INFO: [Reminder] Batch offset=%d: %d due, %d suspended skipped", rule.Offset, len(targets), len(skipped))

	for i, c := range targets {
		if i > 0 && d.delay > 0 {
			select {
			case <-ctx.Done():
				for _, rest := range targets[i:] {
					report.Outcomes = append(report.Outcomes, Outcome{Key: rest.Key, Name: rest.Name, Status: StatusFailed, Error: ctx.Err().Error()})
					report.Failed++
				}
				return report
			case <-time.After(d.delay):
			}
		}
		out, err := d.SendReminder(ctx, c)
		if err != nil {
			log.Printf("ERROR: [Reminder] %v", err)
			report.Failed++
		} else {
			report.Sent++
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	return report
}
