package insights

import "fmt"

// Fallback synthesizes insights from attendance statistics alone.
func Fallback(req Request) []string {
	period := req.PeriodDays
	if period <= 0 {
		period = 30
	}
	days := req.AttendanceDays
	if days < 0 {
		days = 0
	}
	if days > period {
		days = period
	}
	rate := days * 100 / period

	out := []string{
		fmt.Sprintf("You checked in on %d of the last %d days (%d%%).", days, period, rate),
	}
	switch {
	case days == 0:
		out = append(out, "No check-ins recorded in this period. Ask your team admin for today's code to get started.")
	case rate >= 90:
		out = append(out, "Excellent consistency. Keep up the strong attendance.")
	case rate >= 70:
		out = append(out, "Good attendance. A few more check-ins would put you in the top tier.")
	default:
		out = append(out, "Attendance is below target. Try to check in on every team day.")
	}
	if req.TeamName != "" {
		out = append(out, fmt.Sprintf("These figures cover your check-ins with %s.", req.TeamName))
	}
	return out
}
