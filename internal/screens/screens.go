// Package screens renders the authenticated destinations as plain text.
//
// Every renderer branches on the role with an exhaustive switch; an
// unknown role is an error rather than a fallback to some default view.
package screens

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/me/cognilearn/pkg/model"
)

func roleError(role model.Role) error {
	return fmt.Errorf("%w: %q", model.ErrUnknownRole, role)
}

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "=== %s ===\n", title)
}

// num formats v without trailing zeros.
func num(v float64) string {
	return humanize.Ftoa(v)
}

func series(vs []float64) string {
	if len(vs) == 0 {
		return "-"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = num(v)
	}
	return strings.Join(parts, " > ")
}

func bullets(w io.Writer, items []string) {
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Dashboard renders the role-specific dashboard.
func Dashboard(w io.Writer, role model.Role, d *model.Dashboard) error {
	switch role {
	case model.RoleStudent:
		header(w, "Welcome, student")
		fmt.Fprintf(w, "Study time:  %s mins\n", num(d.StudyTime.Or(0)))
		fmt.Fprintf(w, "Focus score: %s%%\n", num(d.FocusScore.Or(0)))
		if d.LearningProgress != nil {
			fmt.Fprintf(w, "Progress:    %s\n", series(d.LearningProgress))
		}
	case model.RoleParent:
		header(w, "Welcome, parent")
		fmt.Fprintf(w, "Child performance: %s\n", d.ChildPerformance)
		if d.WeeklyOverview != "" {
			fmt.Fprintf(w, "  %s\n", d.WeeklyOverview)
		}
	case model.RoleTeacher:
		header(w, "Welcome, teacher")
		fmt.Fprintf(w, "Class overview: %s\n", d.ClassOverview)
		fmt.Fprintln(w, "At-risk students:")
		if len(d.AtRiskStudents) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		bullets(w, d.AtRiskStudents)
	default:
		return roleError(role)
	}
	if len(d.Alerts) > 0 {
		fmt.Fprintln(w, "Alerts:")
		bullets(w, d.Alerts)
	}
	return nil
}

// ErrorPanel renders a failed fetch with the actions available to the user.
func ErrorPanel(w io.Writer, what string, err error) {
	fmt.Fprintf(w, "Failed to load %s: %v\n", what, err)
	fmt.Fprintln(w, "Run the command again to retry, or `logout` to sign out.")
}

// Cognitive renders the cognitive profile.
func Cognitive(w io.Writer, c *model.Cognitive) {
	header(w, "Cognitive profile")
	learningType := c.LearningType
	if learningType == "" {
		learningType = "Unknown"
	}
	fmt.Fprintf(w, "Learning type:   %s learner\n", learningType)
	fmt.Fprintf(w, "Focus depth:     %s%%\n", num(c.FocusScore.Or(0)))
	fmt.Fprintf(w, "Curiosity index: %s/100\n", num(c.CuriosityIndex.Or(0)))
	risk := "Low"
	if c.AtRisk.Or(false) {
		risk = "High"
	}
	fmt.Fprintf(w, "Risk level:      %s\n", risk)
	if len(c.Recommendations) > 0 {
		fmt.Fprintln(w, "Recommendations:")
		bullets(w, c.Recommendations)
	}
}

// Report renders a weekly or monthly progress report.
func Report(w io.Writer, period model.ReportPeriod, r *model.Report) error {
	var title, trend string
	switch period {
	case model.PeriodWeekly:
		title, trend = "Weekly report", "Daily accuracy"
	case model.PeriodMonthly:
		title, trend = "Monthly report", "Weekly accuracy"
	default:
		return fmt.Errorf("unknown report period %q", period)
	}
	header(w, title)
	fmt.Fprintf(w, "Growth:       %s%%\n", num(r.ImprovementPercentage.Or(0)))
	if r.EngagementScore.Set {
		fmt.Fprintf(w, "Engagement:   %s\n", num(r.EngagementScore.Value))
	} else {
		fmt.Fprintln(w, "Engagement:   -")
	}
	fmt.Fprintf(w, "Accuracy up:  %s\n", yesNo(r.MistakeReduction.Or(false)))
	fmt.Fprintf(w, "%s: %s\n", trend, series(r.AccuracyTrend))
	if r.MistakeReduction.Or(false) {
		fmt.Fprintln(w, "Outstanding accuracy! You've consistently reduced errors.")
	} else {
		fmt.Fprintln(w, "Room for improvement: try slowing down during the logic questions.")
	}
	return nil
}
