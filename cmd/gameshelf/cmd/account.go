package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gameshelf/internal/auth"
	"gameshelf/internal/card"
	"gameshelf/internal/utils"
)

type sessionResponse struct {
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	ExpiresAt string `json:"expires_at"`
	Result    string `json:"result"`
}

type cardResponse struct {
	Card   card.Card `json:"card"`
	Result string    `json:"result"`
}

func sessionToResponse(s *auth.Session, result string) sessionResponse {
	return sessionResponse{
		OwnerID:   s.OwnerID,
		Name:      s.Profile.Name,
		AvatarURL: s.Profile.AvatarURL,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
		Result:    result,
	}
}

// newSignInCmd creates the 'signin' subcommand
func newSignInCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and start a session",
		Long:  "Sign in with a display name. The same name always opens the same collection.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			name, _ := cmd.Flags().GetString("name")
			avatar, _ := cmd.Flags().GetString("avatar")
			if name == "" && e.interactive() {
				p := utils.NewPrompter(e.stdin(), stdout)
				if name, err = p.String("Name", ""); err != nil {
					return err
				}
				if avatar == "" {
					if avatar, err = p.String("Avatar URL (optional)", ""); err != nil {
						return err
					}
				}
			}
			return doSignIn(e, name, avatar)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("name", "n", "", "Display name")
	cmd.Flags().String("avatar", "", "Avatar image URL (http or https)")
	return cmd
}

// doSignIn starts a session and forgets any cached snapshot of the previous owner
func doSignIn(e *env, name, avatar string) error {
	p := e.provider()
	previous, _ := p.Current(e.ctx)

	session, err := p.SignIn(e.ctx, name, avatar)
	if err != nil {
		return err
	}
	if previous != nil && previous.OwnerID != session.OwnerID {
		forgetSnapshots(e, previous.OwnerID)
	}

	if e.jsonOutput {
		return writeJSON(e.stdout, sessionToResponse(session, ResultActionCompleted))
	}
	_, _ = fmt.Fprintf(e.stdout, "Signed in as %s\n", session.Profile.Name)
	_, _ = fmt.Fprintf(e.stdout, "Owner ID: %s\n", session.OwnerID)
	e.done(ResultActionCompleted)
	return nil
}

// newSignOutCmd creates the 'signout' subcommand
func newSignOutCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()
			return doSignOut(e)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func doSignOut(e *env) error {
	p := e.provider()
	session, _ := p.Current(e.ctx)
	if err := p.SignOut(e.ctx); err != nil {
		return err
	}
	if session != nil {
		forgetSnapshots(e, session.OwnerID)
	}

	if e.jsonOutput {
		return writeJSON(e.stdout, struct {
			Action string `json:"action"`
			Result string `json:"result"`
		}{"signout", ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(e.stdout, "Signed out")
	e.done(ResultActionCompleted)
	return nil
}

// forgetSnapshots drops the persisted snapshots of owner
func forgetSnapshots(e *env, owner string) {
	snapshots := e.snapshotStore()
	if snapshots == nil {
		return
	}
	if err := snapshots.Forget(owner); err != nil {
		utils.Warnf("failed to clear cached snapshots: %v", err)
	}
}

// newWhoAmICmd creates the 'whoami' subcommand
func newWhoAmICmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			session, err := e.session()
			if err != nil {
				return err
			}
			if e.jsonOutput {
				return writeJSON(stdout, sessionToResponse(session, ResultInfoOnly))
			}
			_, _ = fmt.Fprintf(stdout, "Name:     %s\n", session.Profile.Name)
			_, _ = fmt.Fprintf(stdout, "Owner ID: %s\n", session.OwnerID)
			if session.Profile.AvatarURL != "" {
				_, _ = fmt.Fprintf(stdout, "Avatar:   %s\n", session.Profile.AvatarURL)
			}
			_, _ = fmt.Fprintf(stdout, "Expires:  %s\n", session.ExpiresAt.Local().Format("2006-01-02 15:04"))
			e.done(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCardCmd creates the 'card' subcommand
func newCardCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Show your profile ID card",
		Long:  "Show the signed-in profile as an ID card. Extra fields come from the card section of the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			session, err := e.session()
			if err != nil {
				return err
			}
			c := card.FromSession(session, e.conf.Card)
			if e.jsonOutput {
				return writeJSON(stdout, cardResponse{Card: c, Result: ResultInfoOnly})
			}
			width, _ := cmd.Flags().GetInt("width")
			_, _ = fmt.Fprintln(stdout, card.Render(c, width))
			e.done(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Int("width", 0, "Inner card width (0 fits the content)")
	return cmd
}
