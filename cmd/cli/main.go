package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nimasrn/btc-invoice-gateway/internal/config"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
)

const usage = "usage: cli <migrate|rollback|status|seed> [--env=path] [--dir=./migrations]"

// demoUsers are the accounts created by the seed command.
var demoUsers = []model.UserCreateRequest{
	{Email: "test@example.com", Name: "Main test user"},
	{Email: "admin@example.com", Name: "Admin test user"},
	{Email: "user@example.com", Name: "Regular user"},
}

func main() {
	command := getCommand()
	if command == "" {
		fmt.Println(usage)
		os.Exit(2)
	}

	if err := config.Load(getEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	pgConf := config.Get().WriteDB()

	var err error
	switch command {
	case "migrate":
		err = pg.Migrate(pgConf, getMigrationPath())
	case "rollback":
		err = pg.Rollback(pgConf, getMigrationPath())
	case "status":
		err = pg.MigrationStatus(pgConf, getMigrationPath())
	case "seed":
		err = runSeed(pgConf)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func runSeed(conf pg.Config) error {
	db, err := pg.CreateReadWrite(conf, conf, false)
	if err != nil {
		return err
	}
	created, skipped, err := seedUsers(context.Background(), repository.NewUserRepository(db))
	if err != nil {
		return err
	}
	logger.Info("users seeded", "created", created, "skipped", skipped)
	return nil
}

type userSeeder interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// seedUsers inserts the demo accounts that do not exist yet.
func seedUsers(ctx context.Context, users userSeeder) (created, skipped int, err error) {
	for _, req := range demoUsers {
		if err := req.Validate(); err != nil {
			return created, skipped, err
		}
		_, err := users.GetByEmail(ctx, req.Email)
		switch {
		case err == nil:
			skipped++
			continue
		case !errors.Is(err, repository.ErrUserNotFound):
			return created, skipped, err
		}

		if _, err := users.Create(ctx, &model.User{Email: req.Email, Name: req.Name}); err != nil {
			return created, skipped, fmt.Errorf("seed %s: %w", req.Email, err)
		}
		created++
	}
	return created, skipped, nil
}

func getCommand() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return ""
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			return strings.Split(v, "=")[1]
		}
	}
	return "./migrations"
}
