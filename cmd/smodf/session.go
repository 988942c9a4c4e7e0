package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/smodf-client/internal/account"
)

// PasswordEnv supplies the login password without a flag
const PasswordEnv = "SMODF_PASSWORD"

func loginCommand(c *cli) *cobra.Command {
	var correo, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the SMODF backend and keep the session marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(PasswordEnv)
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			u, err := c.app.Accounts.Login(cmd.Context(), correo, password)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}

	cmd.Flags().StringVarP(&correo, "correo", "u", "", "account e-mail")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or "+PasswordEnv+", or prompt)")
	_ = cmd.MarkFlagRequired("correo")
	return cmd
}

func logoutCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and drop the session marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Accounts.Logout(cmd.Context())
		},
	}
}

func whoamiCommand(c *cli) *cobra.Command {
	var update account.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show (or update) the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.app.Accounts.Authenticated() {
				return errors.New("not logged in")
			}
			var u *account.User
			var err error
			if update == (account.ProfileUpdate{}) {
				u, err = c.app.Accounts.CurrentUser(cmd.Context())
			} else {
				u, err = c.app.Accounts.UpdateProfile(cmd.Context(), update)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}

	cmd.Flags().StringVar(&update.Nickname, "set-nickname", "", "change the nickname")
	cmd.Flags().StringVar(&update.NombreCompleto, "set-name", "", "change the full name")
	cmd.Flags().StringVar(&update.Email, "set-email", "", "change the e-mail")
	return cmd
}

func routeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Show the navigation guard decision for a page path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			route, decision := c.app.Navigate(args[0])
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"path":          route.Path,
				"name":          route.Name,
				"params":        route.Params,
				"requires_auth": route.RequiresAuth,
				"authenticated": c.app.Marker.Present(),
				"decision":      decision.String(),
			})
		},
	}
}
