package app

import (
	"context"
	"log/slog"
	"sync"

	"vend_go/internal/domain"
	"vend_go/internal/engine"
	"vend_go/internal/event"
	"vend_go/internal/handler"
	"vend_go/internal/infra"
	"vend_go/internal/infra/feed"
	"vend_go/internal/infra/storage"
	"vend_go/internal/medium"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Journal *storage.Journal
	Feed    *feed.Hub
	Engine  *engine.Engine
	Artwork *infra.ArtworkCache

	// PaymentBook backs the settlement medium; AssetBook backs the
	// transfer escrow and the payout treasury.
	PaymentBook *domain.BalanceBook
	AssetBook   *domain.BalanceBook
	Transfer    *handler.Transfer
	Payout      *handler.Payout
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logger,
// journal, engine, handlers, and the preloaded listings.
func (b *Bootstrap) Initialize() error {
	slog.Info("Bootstrapping VendGo...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Event journal (durable log for external indexers)
	if cfg.Journal.Enabled {
		journal, err := storage.NewJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		b.Journal = journal
		slog.Info("Journal initialized")
	}

	// 4. Live event feed
	b.Feed = feed.NewHub()

	// 5. Engine, wired to journal+feed. The sink runs inside the
	// guarded call, so it only records and never calls back.
	b.Engine = engine.NewEngine(func(ev event.Event) {
		if b.Journal != nil {
			if err := b.Journal.Append(ev); err != nil {
				slog.Error("journal append failed",
					slog.Uint64("seq", ev.GetSeq()),
					slog.Any("error", err))
			}
		}
		b.Feed.Publish(ev)
	})

	// 6. Payment medium and configuration
	b.PaymentBook = domain.NewBalanceBook()
	token := medium.NewToken(cfg.Payment.Medium, b.PaymentBook)
	if err := b.Engine.Configure(token, cfg.Payment.Price, domain.Account(cfg.Payment.Sink)); err != nil {
		return err
	}
	if b.Journal != nil {
		// Persist the active triple for ops introspection.
		b.Journal.SaveConfig("payment.medium", cfg.Payment.Medium)
		b.Journal.SaveConfig("payment.price", cfg.Payment.Price.String())
		b.Journal.SaveConfig("payment.sink", cfg.Payment.Sink)
	}

	// 7. Reference handlers
	b.AssetBook = domain.NewBalanceBook()
	b.Transfer = handler.NewTransfer(b.AssetBook)
	treasury := cfg.Handlers.PayoutTreasury
	if treasury == "" {
		treasury = "treasury"
	}
	b.Payout = handler.NewPayout(b.AssetBook, domain.Account(treasury))

	// 8. Artwork cache (optional, off-engine tooling only)
	if cfg.Artwork.Enabled {
		artwork, err := infra.NewArtworkCache()
		if err != nil {
			return err
		}
		b.Artwork = artwork
		slog.Info("Artwork cache ready")
	}

	// 9. Preload listings from config
	if err := b.preloadAssets(); err != nil {
		return err
	}

	return nil
}

// preloadAssets lists the configured assets, funding each fulfillment
// route so it is actually deliverable.
func (b *Bootstrap) preloadAssets() error {
	treasury := domain.Account(b.Config.Handlers.PayoutTreasury)
	if treasury == "" {
		treasury = "treasury"
	}

	for _, a := range b.Config.Assets {
		id, err := domain.ParseAssetID(a.ID)
		if err != nil {
			return err
		}

		switch a.Handler {
		case infra.HandlerTransfer:
			key := []byte(a.Key)
			if len(key) == 0 {
				key = []byte(a.ID)
			}
			b.AssetBook.Mint(domain.Account(a.Source), a.Amount)
			if err := b.Transfer.Register(key, domain.Account(a.Source), a.Amount); err != nil {
				return err
			}
			if err := b.Engine.List(id, b.Transfer, key); err != nil {
				return err
			}

		case infra.HandlerPayout:
			b.AssetBook.Mint(treasury, a.PayoutAmount())
			if err := b.Engine.List(id, b.Payout, []byte(a.Key)); err != nil {
				return err
			}
		}
	}

	slog.Info("Assets preloaded", slog.Int("count", b.Engine.Count()))
	return nil
}

// SyncArtwork downloads artwork for configured assets in the background
func (b *Bootstrap) SyncArtwork(ctx context.Context) {
	if b.Artwork == nil {
		return
	}
	slog.Info("Starting artwork synchronization...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, a := range b.Config.Assets {
		if a.Artwork == "" {
			continue
		}
		id, err := domain.ParseAssetID(a.ID)
		if err != nil {
			continue
		}

		wg.Add(1)
		go func(id domain.AssetID, url string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			if _, err := b.Artwork.Download(id, url); err != nil {
				slog.Warn("Failed to download artwork",
					slog.String("asset", id.String()),
					slog.Any("error", err))
			}
		}(id, a.Artwork)
	}

	wg.Wait()
	slog.Info("Artwork synchronization completed")
}
