package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sistema-escolar/escuela-backend/internal/client"
	"github.com/sistema-escolar/escuela-backend/internal/model"
)

var (
	loginUser          string
	loginRole          string
	loginPasswordStdin bool
	watchInterval      time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if loginUser == "" {
			return errors.New("--usuario is required")
		}
		password, err := readPassword(loginPasswordStdin)
		if err != nil {
			return err
		}

		m, err := newManager()
		if err != nil {
			return err
		}
		user, err := m.Login(ctx, loginUser, password, loginRole)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), user)
		}
		printUser(cmd, user)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		if err := m.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("server logout failed, local session cleared: %w", err)
		}
		printf(cmd.OutOrStdout(), "Sesión cerrada\n")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		st, err := m.CheckSession(cmd.Context())
		if err != nil {
			// Offline: fall back to the cached user inside its restore window.
			if cached := m.CachedUser(); cached != nil {
				printf(cmd.ErrOrStderr(), "Servidor no disponible, usando datos en caché: %v\n", err)
				st = client.SessionStatus{LoggedIn: true, User: cached}
			} else {
				return err
			}
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		if !st.LoggedIn {
			printf(cmd.OutOrStdout(), "No hay sesión activa\n")
			return nil
		}
		printUser(cmd, st.User)
		return nil
	},
}

var csrfCmd = &cobra.Command{
	Use:   "csrf",
	Short: "Print the session's CSRF token",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		tok, err := m.CSRFToken(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), tok)
		}
		printf(cmd.OutOrStdout(), "%s\n", tok.Token)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep checking the session until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		m, err := newManager()
		if err != nil {
			return err
		}
		printf(cmd.ErrOrStderr(), "Comprobando la sesión cada %s (Ctrl+C para salir)\n", watchInterval)
		m.Poll(ctx, watchInterval)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "usuario", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginRole, "rol", "r", string(model.RoleStudent), "Role: alumno, profesor or admin")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", client.DefaultPollInterval, "Polling interval")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, csrfCmd, watchCmd)
}

func readPassword(fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Contraseña: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func printUser(cmd *cobra.Command, u *model.PublicUser) {
	if u == nil {
		return
	}
	printf(cmd.OutOrStdout(), "Usuario:  %s\nNombre:   %s %s\nCorreo:   %s\nRol:      %s\n",
		u.Username, u.Nombre, u.Apellido, u.Email, u.Role)
}
