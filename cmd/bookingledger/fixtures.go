package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bookingledger/internal/app/uow"
	"bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/money"
	"bookingledger/internal/domain/user"
	"bookingledger/internal/infra/config"
)

type fixtureFile struct {
	Users    []userFixture    `json:"users"`
	Listings []listingFixture `json:"listings"`
}

type userFixture struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PayoutToken string `json:"payout_token"`
	Currency    string `json:"currency"`
}

type listingFixture struct {
	ID               string           `json:"id"`
	Host             string           `json:"host"`
	Title            string           `json:"title"`
	City             string           `json:"city"`
	NightlyRateCents int64            `json:"nightly_rate_cents"`
	Currency         string           `json:"currency"`
	Booked           []daterange.Date `json:"booked"`
}

// loadFixtures seeds hosts and listings for local runs. Records that
// already exist are left untouched.
func (a *application) loadFixtures(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	path := cfg.FixturesPath
	if path == "" {
		path = defaultFixturesPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	fixtures, err := decodeFixtures(data)
	if err != nil {
		return err
	}
	imported := seedFixtures(ctx, a.factory, fixtures, cfg.Currency, time.Now().UTC(), logger)
	logger.Info("fixtures imported", "path", path, "records", imported)
	return nil
}

func decodeFixtures(data []byte) (fixtureFile, error) {
	var out fixtureFile
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode fixtures: %w", err)
	}
	return out, nil
}

func seedFixtures(ctx context.Context, factory uow.UoWFactory, fixtures fixtureFile, currency string, now time.Time, logger *slog.Logger) int {
	imported := 0
	for _, fx := range fixtures.Users {
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		u, err := user.NewUser(user.CreateParams{
			ID:          user.ID(fx.ID),
			Name:        fx.Name,
			PayoutToken: fx.PayoutToken,
			Currency:    cur,
			CreatedAt:   now,
		})
		if err != nil {
			logger.Error("fixture user invalid", "user_id", fx.ID, "error", err)
			continue
		}
		err = uow.Run(ctx, factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			if _, err := unit.Users().ByID(ctx, u.ID); err == nil {
				return errFixtureExists
			}
			return unit.Users().Save(ctx, u)
		})
		if err != nil {
			logFixtureError(logger, "user_id", fx.ID, err)
			continue
		}
		imported++
	}

	for _, fx := range fixtures.Listings {
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		listing, err := listings.NewListing(listings.CreateListingParams{
			ID:          listings.ListingID(fx.ID),
			Host:        listings.HostID(fx.Host),
			Title:       fx.Title,
			City:        fx.City,
			NightlyRate: money.Money{Amount: fx.NightlyRateCents, Currency: cur},
			Booked:      fx.Booked,
			Now:         now,
		})
		if err != nil {
			logger.Error("fixture listing invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		err = uow.Run(ctx, factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			if _, err := unit.Listings().ByID(ctx, listing.ID); err == nil {
				return errFixtureExists
			}
			return unit.Listings().Save(ctx, listing)
		})
		if err != nil {
			logFixtureError(logger, "listing_id", fx.ID, err)
			continue
		}
		imported++
	}
	return imported
}

var errFixtureExists = errors.New("fixture already present")

func logFixtureError(logger *slog.Logger, key, id string, err error) {
	if errors.Is(err, errFixtureExists) {
		logger.Debug("fixture already present", key, id)
		return
	}
	logger.Error("cannot store fixture", key, id, "error", err)
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "fixtures.json"),
		filepath.Join("..", "..", "data", "fixtures.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
