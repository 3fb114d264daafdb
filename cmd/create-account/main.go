package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/database"
	"github.com/sistema-escolar/escuela-backend/internal/logger"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/repository"
	"github.com/sistema-escolar/escuela-backend/internal/service"
)

func main() {
	var (
		username = flag.String("username", "", "Username (prompted when empty)")
		nombre   = flag.String("nombre", "", "First name")
		apellido = flag.String("apellido", "", "Last name")
		email    = flag.String("email", "", "Email")
		rol      = flag.String("rol", "", "Role: alumno, profesor or admin")
		pwStdin  = flag.Bool("password-stdin", false, "Read the password from stdin instead of prompting")
	)
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)
	ask := func(label, current string) string {
		if current != "" {
			return strings.TrimSpace(current)
		}
		fmt.Printf("%s: ", label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	fmt.Println("=== Crear cuenta ===")
	acct := &model.Account{
		Username: ask("Usuario", *username),
		Nombre:   ask("Nombre", *nombre),
		Apellido: ask("Apellido", *apellido),
		Email:    strings.ToLower(ask("Correo", *email)),
		Status:   model.AccountActive,
	}

	role, ok := model.ParseRole(ask("Rol (alumno/profesor/admin)", *rol))
	if !ok {
		fmt.Println("Error: rol no válido")
		os.Exit(2)
	}
	acct.Role = role

	if acct.Username == "" || acct.Nombre == "" || acct.Email == "" {
		fmt.Println("Error: usuario, nombre y correo son obligatorios")
		os.Exit(2)
	}

	password, err := readPassword(reader, *pwStdin)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(2)
	}
	if len(password) < 6 {
		fmt.Println("Error: la contraseña debe tener al menos 6 caracteres")
		os.Exit(2)
	}
	if score, suggestions := service.PasswordStrength(password); score < service.MinPasswordScore {
		log.Warn().Strs("suggestions", suggestions).Msg("Weak password accepted for operator-created account")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Logic ─────────────────────────────────────────────────────────
	hasher, err := service.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid BCRYPT_COST")
	}
	if acct.PasswordHash, err = hasher.Hash(password); err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	accounts := repository.NewAccountRepository(pool)
	if err := accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			fmt.Printf("Error: ya existe una cuenta con el usuario %q o el correo %q\n", acct.Username, acct.Email)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to create account")
	}

	fmt.Printf("\nCuenta '%s' (%s) creada con ID %d\n", acct.Username, acct.Role, acct.ID)
}

func readPassword(reader *bufio.Reader, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print("Contraseña: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
