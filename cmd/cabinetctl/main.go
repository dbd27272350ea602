// cabinetctl seeds the cabinet database: the single admin account and
// batches of test payment cards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/joho/godotenv"

	"github.com/mkravets/isp-cabinet/internal/config"
	"github.com/mkravets/isp-cabinet/internal/database"
	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/repository"
)

func main() {
	parser := argparse.NewParser("cabinetctl", "user cabinet management tool")

	adminCmd := parser.NewCommand("populate-admin", "create the admin account if it does not exist")
	adminPass := adminCmd.String("p", "password", &argparse.Options{
		Default: "test",
		Help:    "administrator password",
	})

	cardsCmd := parser.NewCommand("populate-cards", "create test payment cards")
	cardsNum := cardsCmd.Int("n", "num", &argparse.Options{
		Default: 10,
		Help:    "number of test cards",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}

	switch {
	case adminCmd.Happened():
		err = populateAdmin(ctx, repository.NewAccountRepo(db), *adminPass, cfg.BcryptCost)
	case cardsCmd.Happened():
		err = populateCards(ctx, repository.NewCardRepo(db), *cardsNum)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// populateAdmin creates the sole admin account. The admin role is assigned
// here and only here; the server never grants it.
func populateAdmin(ctx context.Context, repo *repository.AccountRepo, password string, cost int) error {
	if _, err := repo.GetByUsername(ctx, "admin"); err == nil {
		fmt.Println("Already exists.")
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	admin := model.Account{
		Username: "admin",
		Role:     model.RoleAdmin,
		State:    model.StateActivated,
	}
	if err := repo.Create(ctx, &admin, password, cost); err != nil {
		return fmt.Errorf("unable to create: %w", err)
	}
	fmt.Printf("Successfully created.\nLogin: admin\nPassword: %s\n", password)
	return nil
}

// populateCards seeds n cards with zero-padded sequential codes, half of
// them worth 200 and the rest 400.
func populateCards(ctx context.Context, repo *repository.CardRepo, n int) error {
	if n < 1 {
		return fmt.Errorf("need at least one card")
	}
	cards := make([]model.Card, 0, n)
	for i := 0; i < n; i++ {
		amount := 200
		if i >= n/2 {
			amount = 400
		}
		cards = append(cards, model.Card{
			Amount: amount,
			Code:   fmt.Sprintf("%06d", i),
		})
	}
	if err := repo.CreateBatch(ctx, cards); err != nil {
		if errors.Is(err, repository.ErrCardCodeExists) {
			return fmt.Errorf("cards already exist")
		}
		return err
	}
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code
	}
	fmt.Printf("Successfully created. Card codes: %v\n", codes)
	return nil
}
