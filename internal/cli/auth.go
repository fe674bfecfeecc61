package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/cognilearn/internal/nav"
	"github.com/me/cognilearn/internal/session"
	"github.com/me/cognilearn/pkg/model"
)

func roleNames() []string {
	names := make([]string, len(model.Roles))
	for i, r := range model.Roles {
		names[i] = r.String()
	}
	return names
}

// credentialsFromFlags fills email and password, prompting for whatever
// was not given on the command line.
func (a *app) credentialsFromFlags(cmd *cobra.Command, email, password *string) error {
	var err error
	if *email == "" {
		if *email, err = a.readLine(cmd, "Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.readLine(cmd, "Password: "); err != nil {
			return err
		}
	}
	if *email == "" || *password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// finish reports the outcome of an auth operation.
func (a *app) finish(cmd *cobra.Command, res session.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	st := a.sess.State()
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", st.User.Email, st.Role)
	return nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.credentialsFromFlags(cmd, &email, &password); err != nil {
				return err
			}
			return a.finish(cmd, a.sess.Login(cmd.Context(), email, password))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var email, password, role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ParseRole(role)
			if err != nil {
				return fmt.Errorf("--role must be one of %s", strings.Join(roleNames(), ", "))
			}
			if err := a.credentialsFromFlags(cmd, &email, &password); err != nil {
				return err
			}
			return a.finish(cmd, a.sess.Register(cmd.Context(), email, password, r))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", model.RoleStudent.String(), "Account role (student, parent, teacher)")
	return cmd
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "demo <student|parent|teacher>",
		Short:     "Sign in as a demo account without contacting the server",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: roleNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.finish(cmd, a.sess.DemoLogin(cmd.Context(), model.Role(args[0])))
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.sess.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"status"},
		Short:   "Show the current session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			st := a.sess.State()
			if !st.Authenticated() {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}
			fmt.Fprintf(out, "%-8s %s\n", "Email:", st.User.Email)
			fmt.Fprintf(out, "%-8s %s\n", "User ID:", st.User.ID)
			fmt.Fprintf(out, "%-8s %s\n", "Role:", st.Role)
			fmt.Fprintf(out, "%-8s %s\n", "Mode:", a.gate.Mode())
			if !st.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "%-8s %s\n", "Expires:", humanize.Time(st.ExpiresAt))
			}
			return nil
		},
	}
}

func newScreensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "screens",
		Short: "List the screens reachable in the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State: %s (%s)\n", a.gate.State(), a.gate.Mode())
			current := a.gate.Current()
			for _, s := range a.gate.Screens() {
				marker := " "
				if s == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, s)
			}
			if a.gate.State() == nav.StateUnauthenticated {
				fmt.Fprintln(out, "\nSign in with `login`, `register` or `demo`.")
			}
			return nil
		},
	}
}
