package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"cashback-platform/internal/models"
	"cashback-platform/internal/services"

	"github.com/bxcodec/faker/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultPassword = "senha123"

type Options struct {
	AdminEmail    string
	AdminPassword string
	Stores        int
	Clients       int
}

// Run fills a development database through the regular services, so the
// reserve, wallets and pending usage movements stay consistent with each other.
func Run(ctx context.Context, db *sql.DB, logger zerolog.Logger, opts Options) error {
	notifications := services.NewNotificationService(db, logger)
	reserve := services.NewReserveService(db, logger)
	wallet := services.NewWalletService(db, logger)
	users := services.NewUserService(db, logger)
	stores := services.NewStoreService(db, logger, notifications)
	cashback := services.NewCashbackService(db, logger, wallet, reserve, notifications)

	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@cashback.local"
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = defaultPassword
	}

	_, err := users.CreateAdmin(ctx, "admin", opts.AdminEmail, opts.AdminPassword)
	if err != nil && !errors.Is(err, services.ErrUserExists) {
		return fmt.Errorf("create admin: %w", err)
	}

	var storeIDs []int
	for i := 0; i < opts.Stores; i++ {
		owner, err := users.Register(ctx, &models.RegisterRequest{
			Username: faker.Username(),
			Email:    fakeEmail("loja", i),
			Password: defaultPassword,
			Role:     string(models.RoleStore),
		})
		if err != nil {
			return fmt.Errorf("create store owner: %w", err)
		}

		store, err := stores.Register(ctx, owner.ID, &models.RegisterStoreRequest{
			Name:  faker.LastName() + " " + faker.Word(),
			Email: owner.Email,
		})
		if err != nil {
			return fmt.Errorf("create store: %w", err)
		}
		if _, err := stores.Approve(ctx, store.ID); err != nil {
			return fmt.Errorf("approve store: %w", err)
		}
		storeIDs = append(storeIDs, store.ID)
	}

	if len(storeIDs) == 0 {
		logger.Info().Msg("No stores seeded, skipping clients")
		return nil
	}

	for i := 0; i < opts.Clients; i++ {
		client, err := users.Register(ctx, &models.RegisterRequest{
			Username: faker.FirstName() + " " + faker.LastName(),
			Email:    fakeEmail("cliente", i),
			Password: defaultPassword,
		})
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}

		storeID := storeIDs[rand.Intn(len(storeIDs))]
		purchase := decimal.New(int64(rand.Intn(90000)+1000), -2)
		reward := purchase.Mul(decimal.New(5, -2)).Round(2)

		transaction, err := cashback.RegisterPurchase(ctx, storeID, &models.PurchaseRequest{
			ClientUserID:   client.ID,
			PurchaseAmount: purchase,
			CashbackAmount: reward,
		})
		if err != nil {
			return fmt.Errorf("register purchase: %w", err)
		}
		if _, err := cashback.ApproveTransaction(ctx, transaction.ID); err != nil {
			return fmt.Errorf("approve purchase: %w", err)
		}

		// Half the clients spend part of their cashback, leaving usage
		// movements for the balance payment screens.
		if i%2 == 0 {
			spend := reward.Div(decimal.NewFromInt(2)).Round(2)
			if spend.IsPositive() {
				if _, err := cashback.UseBalance(ctx, storeIDs[rand.Intn(len(storeIDs))], &models.BalanceUsageRequest{
					ClientUserID: client.ID,
					Amount:       spend,
				}); err != nil {
					return fmt.Errorf("use balance: %w", err)
				}
			}
		}
	}

	logger.Info().
		Int("stores", len(storeIDs)).
		Int("clients", opts.Clients).
		Msg("Database seeded")
	return nil
}

// fakeEmail keeps faker addresses unique across runs of the seeder.
func fakeEmail(prefix string, i int) string {
	local := strings.SplitN(faker.Email(), "@", 2)[0]
	return fmt.Sprintf("%s.%s.%d.%s@cashback.local", prefix, local, i, strings.ToLower(faker.Word()))
}
