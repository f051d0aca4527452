package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mrlokans/dancecoach/internal/auth"
	"github.com/mrlokans/dancecoach/internal/config"
	"github.com/mrlokans/dancecoach/internal/entities"
	"github.com/mrlokans/dancecoach/internal/entrypoint"
)

var ErrAccountExists = errors.New("an account with this username or email already exists")

// CreateAccountCommand creates an account directly in the database. It is
// the only way to create the first administrator.
type CreateAccountCommand struct {
	Username     string
	Email        string
	Password     string
	Nickname     string
	Role         string
	DatabasePath string
}

func NewCreateAccountCommand() *CreateAccountCommand {
	return &CreateAccountCommand{}
}

func (cmd *CreateAccountCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-account", flag.ContinueOnError)

	fs.StringVar(&cmd.Username, "username", "", "Login name (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (defaults to the DANCECOACH_PASSWORD environment variable)")
	fs.StringVar(&cmd.Nickname, "nickname", "", "Display name")
	fs.StringVar(&cmd.Role, "role", string(entities.RoleAdmin), "Role: admin, teacher, doctor, volunteer, child or elderly")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (defaults to DATABASE_PATH)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-account -username <name> -email <email> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an account, bypassing the public registration rules.\n\n")
		fmt.Fprintf(os.Stderr, "SECRET_KEY is not needed; only the database settings are used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  DANCECOACH_PASSWORD=changeme %s create-account -username admin -email admin@example.com\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Username == "" {
		return fmt.Errorf("required flag -username not provided")
	}
	if cmd.Email == "" {
		return fmt.Errorf("required flag -email not provided")
	}
	if cmd.Password == "" {
		cmd.Password = os.Getenv("DANCECOACH_PASSWORD")
	}
	if cmd.Password == "" {
		return fmt.Errorf("no password given: use -password or DANCECOACH_PASSWORD")
	}
	if _, ok := entities.ParseRole(cmd.Role); !ok {
		return fmt.Errorf("unknown role %q", cmd.Role)
	}

	return nil
}

func (cmd *CreateAccountCommand) Run(cfg *config.Config) error {
	if cmd.DatabasePath != "" {
		cfg.Database.Path = cmd.DatabasePath
	}
	// No token is minted here, so SECRET_KEY is not required. The codec
	// still needs a key to be built.
	if strings.TrimSpace(cfg.Auth.SecretKey) == "" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return err
		}
		cfg.Auth.SecretKey = secret
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := entrypoint.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	account, err := cmd.create(context.Background(), app.AuthService)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s account %q (id %d, unique id %s)\n", account.Role, account.Username, account.ID, account.UniqueID)
	return nil
}

func (cmd *CreateAccountCommand) create(ctx context.Context, service *auth.Service) (*entities.Account, error) {
	role, _ := entities.ParseRole(cmd.Role)

	result, err := service.Register(ctx, auth.RegisterInput{
		Username: cmd.Username,
		Email:    cmd.Email,
		Password: cmd.Password,
		Nickname: cmd.Nickname,
		Role:     role,
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome != auth.RegisterSuccess {
		return nil, fmt.Errorf("%w (%s)", ErrAccountExists, result.Outcome)
	}
	return result.Account, nil
}
