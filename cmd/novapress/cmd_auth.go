package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"novapress/internal/api"
	"novapress/internal/display"
	"novapress/internal/session"
)

// passwordEnv supplies the password when --password is not given.
const passwordEnv = "NOVAPRESS_PASSWORD"

var authFlags struct {
	email    string
	password string
	name     string
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Reader account: login, registration and profile",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and keep the session locally",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Args:  cobra.NoArgs,
	RunE:  runAuthRegister,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the profile, or rename it with --name",
	Args:  cobra.NoArgs,
	RunE:  runAuthProfile,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new access token",
	Args:  cobra.NoArgs,
	RunE:  runAuthRefresh,
}

func init() {
	for _, c := range []*cobra.Command{authLoginCmd, authRegisterCmd} {
		c.Flags().StringVar(&authFlags.email, "email", "", "Account email (required)")
		c.Flags().StringVar(&authFlags.password, "password", "", "Password (default $"+passwordEnv+", then stdin)")
		_ = c.MarkFlagRequired("email")
	}
	authRegisterCmd.Flags().StringVar(&authFlags.name, "name", "", "Display name")
	authProfileCmd.Flags().StringVar(&authFlags.name, "name", "", "New display name")

	authCmd.AddCommand(authLoginCmd, authRegisterCmd, authLogoutCmd, authProfileCmd, authRefreshCmd)
}

// openSession builds the app with its local store.
func openSession(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}

func password(in io.Reader) (string, error) {
	if authFlags.password != "" {
		return authFlags.password, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	p := strings.TrimRight(line, "\r\n")
	if p == "" {
		return "", fmt.Errorf("password required (--password, $%s or stdin)", passwordEnv)
	}
	return p, nil
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	pw, err := password(cmd.InOrStdin())
	if err != nil {
		return err
	}
	u, err := a.session.Login(cmd.Context(), api.Credentials{Email: authFlags.email, Password: pw})
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), u, func() string { return "Connecté en tant que " + userLabel(u, authFlags.email) + "\n" })
}

func runAuthRegister(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	pw, err := password(cmd.InOrStdin())
	if err != nil {
		return err
	}
	u, err := a.session.Register(cmd.Context(), api.Registration{Email: authFlags.email, Password: pw, Name: authFlags.name})
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), u, func() string { return "Compte créé : " + userLabel(u, authFlags.email) + "\n" })
}

func userLabel(u *api.User, fallback string) string {
	switch {
	case u == nil:
		return fallback
	case u.Name != "":
		return u.Name + " <" + u.Email + ">"
	}
	return u.Email
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(cmd.OutOrStdout(), display.MsgNotLoggedIn)
		return nil
	}
	if err := a.session.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Déconnecté")
	return nil
}

func runAuthProfile(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var u *api.User
	if cmd.Flags().Changed("name") {
		name := authFlags.name
		u, err = a.session.UpdateProfile(cmd.Context(), api.ProfileUpdate{Name: &name})
	} else {
		u, err = a.session.Profile(cmd.Context())
	}
	if errors.Is(err, session.ErrNotAuthenticated) {
		return errors.New(display.MsgNotLoggedIn)
	}
	if err != nil {
		return apiFailure(err)
	}
	return a.emit(cmd.OutOrStdout(), u, func() string {
		return kv(
			[2]string{"Nom", orDash(u.Name)},
			[2]string{"Email", u.Email},
			[2]string{"Rôle", orDash(u.Role)},
			[2]string{"Inscrit", tsString(u.CreatedAt)},
		)
	})
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.session.Refresh(cmd.Context()); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return errors.New(display.MsgNotLoggedIn)
		}
		return apiFailure(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session renouvelée")
	return nil
}
