package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/cognilearn/internal/nav"
	"github.com/me/cognilearn/internal/screens"
	"github.com/me/cognilearn/internal/session"
	"github.com/me/cognilearn/pkg/model"
)

var errNotSignedIn = errors.New("not signed in: run `login`, `register` or `demo` first")

// open navigates to screen and returns the session it should render for.
func (a *app) open(screen nav.Screen) (session.State, error) {
	if err := a.gate.Navigate(screen); err != nil {
		if errors.Is(err, nav.ErrScreenUnavailable) && a.gate.State() != nav.StateAuthenticated {
			return session.State{}, errNotSignedIn
		}
		return session.State{}, err
	}
	return a.sess.State(), nil
}

// fetchFailed renders the error panel for a failed load. A rejected token
// signs the user out.
func (a *app) fetchFailed(cmd *cobra.Command, what string, err error) error {
	out := cmd.OutOrStdout()
	if a.sess.InvalidateOnAuthError(cmd.Context(), err) {
		fmt.Fprintln(out, "Your session is no longer valid. Signed out.")
	}
	screens.ErrorPanel(out, what, err)
	return fmt.Errorf("load %s failed", what)
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for your role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(nav.ScreenDashboard)
			if err != nil {
				return err
			}
			d, err := a.client.Dashboard(cmd.Context(), st.User.ID)
			if err != nil {
				return a.fetchFailed(cmd, "dashboard", err)
			}
			return screens.Dashboard(cmd.OutOrStdout(), st.Role, d)
		},
	}
}

func newCognitiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cognitive",
		Short: "Show your cognitive profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(nav.ScreenCognitive)
			if err != nil {
				return err
			}
			c, err := a.client.Cognitive(cmd.Context(), st.User.ID)
			if err != nil {
				return a.fetchFailed(cmd, "cognitive profile", err)
			}
			screens.Cognitive(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "report [weekly|monthly]",
		Short:     "Show your weekly or monthly progress report",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(model.PeriodWeekly), string(model.PeriodMonthly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			period := model.PeriodWeekly
			if len(args) == 1 {
				period = model.ReportPeriod(args[0])
			}
			st, err := a.open(nav.ScreenReport)
			if err != nil {
				return err
			}
			r, err := a.client.Report(cmd.Context(), period, st.User.ID)
			if err != nil {
				return a.fetchFailed(cmd, string(period)+" report", err)
			}
			return screens.Report(cmd.OutOrStdout(), period, r)
		},
	}
}

func newLearnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Take the lesson quiz (students) or view the learning panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(nav.ScreenLearning)
			if err != nil {
				return err
			}
			notice, err := screens.LearningNotice(st.Role)
			if err != nil {
				return err
			}
			if notice != "" {
				fmt.Fprintln(cmd.OutOrStdout(), notice)
				return nil
			}
			return a.runQuiz(cmd, st.User.ID)
		},
	}
}

func (a *app) runQuiz(cmd *cobra.Command, userID string) error {
	out := cmd.OutOrStdout()
	quiz := screens.NewQuiz(userID, nil)

	for i, q := range screens.Lesson {
		screens.AskQuestion(out, i)
		for {
			line, err := a.readLine(cmd, "Answer: ")
			if err != nil {
				return err
			}
			choice, err := strconv.Atoi(line)
			if err != nil || choice < 1 || choice > len(q.Choices) {
				fmt.Fprintf(out, "Choose a number from 1 to %d.\n", len(q.Choices))
				continue
			}
			entry := quiz.Answer(q, choice-1)
			if entry == nil {
				fmt.Fprintln(out, "Incorrect, try again! Remember to read the question carefully.")
				continue
			}
			if err := a.client.LogBehavior(cmd.Context(), *entry); err != nil {
				a.logger.Error("submit behavior log", "error", err)
				fmt.Fprintln(out, "Error submitting log.")
				if a.sess.InvalidateOnAuthError(cmd.Context(), err) {
					return errors.New("session expired: sign in again")
				}
			} else {
				fmt.Fprintln(out, "Great job! Answer correct and behavior logged.")
			}
			break
		}
		fmt.Fprintln(out)
	}
	return nil
}
