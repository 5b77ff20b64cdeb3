package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/predictionleague/internal/access"
	s3blob "github.com/alanyoungcy/predictionleague/internal/blob/s3"
	"github.com/alanyoungcy/predictionleague/internal/cache/redis"
	"github.com/alanyoungcy/predictionleague/internal/config"
	"github.com/alanyoungcy/predictionleague/internal/crypto"
	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/ledger"
	"github.com/alanyoungcy/predictionleague/internal/metrics"
	"github.com/alanyoungcy/predictionleague/internal/notify"
	"github.com/alanyoungcy/predictionleague/internal/platform/polymarket"
	"github.com/alanyoungcy/predictionleague/internal/resolution"
	"github.com/alanyoungcy/predictionleague/internal/service"
	"github.com/alanyoungcy/predictionleague/internal/store/memory"
	"github.com/alanyoungcy/predictionleague/internal/store/postgres"
	"github.com/alanyoungcy/predictionleague/internal/store/sqlite"
)

// leaderboardConcurrency bounds concurrent prediction reads for a table.
const leaderboardConcurrency = 8

// Dependencies bundles everything the command tree needs. Optional parts are
// nil when their section is disabled.
type Dependencies struct {
	Store  domain.LedgerStore
	Ledger *ledger.Ledger

	// Operator is the account commands act as. It is the zero account when
	// no wallet is configured, which makes every write fail validation or
	// authorization.
	Operator domain.Account
	Signer   *crypto.Signer

	Markets     *service.MarketService
	Leaderboard *service.LeaderboardService
	Engine      *resolution.Engine

	Archive  *resolution.ReportArchive
	Events   *redis.EventPublisher
	Notifier *notify.Notifier
	Metrics  *metrics.Registry
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Metrics: metrics.NewRegistry()}

	// --- Operator key ---
	keyCfg := crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}
	if keyCfg.Configured() {
		signer, err := crypto.LoadSigner(keyCfg, cfg.Wallet.ChainID)
		if err != nil {
			return fail(fmt.Errorf("wire: wallet: %w", err))
		}
		deps.Signer = signer
		deps.Operator = signer.Address()
	}

	auth, err := authorizer(cfg.Access, deps.Operator)
	if err != nil {
		return fail(err)
	}

	// --- Ledger store ---
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)
	deps.Store = store

	// --- Redis ---
	var (
		locker      domain.LockManager
		marketCache domain.MarketInfoCache
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		locker = redis.NewLockManager(redisClient)
		marketCache = redis.NewMarketCache(redisClient, cfg.Redis.MarketTTL.Duration)
		bus := redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.Events = redis.NewEventPublisher(bus, cfg.Redis.EventStream, cfg.Redis.EventChannel)
	}

	ledgerOpts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithObserver(deps.Metrics),
	}
	if deps.Events != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithEventSink(deps.Events))
	}
	deps.Ledger = ledger.New(store, auth, ledgerOpts...)

	// --- Market data ---
	gamma := polymarket.NewGammaClient(polymarket.GammaConfig{
		BaseURL:       cfg.Gamma.Host,
		Timeout:       cfg.Gamma.Timeout.Duration,
		RatePerSecond: cfg.Gamma.RatePerSecond,
		Burst:         cfg.Gamma.Burst,
	})
	deps.Markets = service.NewMarketService(gamma, marketCache, deps.Metrics, logger)
	deps.Leaderboard = service.NewLeaderboardService(deps.Ledger, leaderboardConcurrency, logger)

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archive = resolution.NewReportArchive(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Signer,
			cfg.S3.Prefix,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			return fail(fmt.Errorf("wire: telegram: %w", err))
		}
		senders = append(senders, tg)
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Resolution engine ---
	engineOpts := []resolution.Option{
		resolution.WithLogger(logger),
		resolution.WithMarketLookup(deps.Markets),
		resolution.WithRecorder(deps.Metrics),
	}
	if locker != nil {
		engineOpts = append(engineOpts, resolution.WithLocker(locker))
	}
	if deps.Archive != nil {
		engineOpts = append(engineOpts, resolution.WithArchiver(deps.Archive))
	}
	if deps.Notifier.Enabled() {
		engineOpts = append(engineOpts, resolution.WithNotifier(deps.Notifier))
	}
	deps.Engine = resolution.NewEngine(deps.Ledger, resolution.Config{
		Operator:   deps.Operator,
		Idempotent: cfg.Resolution.Idempotent,
		LockTTL:    cfg.Resolution.LockTTL.Duration,
	}, engineOpts...)

	return deps, cleanup, nil
}

// openStore opens the configured ledger backend.
func openStore(ctx context.Context, cfg *config.Config) (domain.LedgerStore, func(), error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case config.DriverMemory:
		return memory.New(), func() {}, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		return st, func() { _ = st.Close() }, nil

	case config.DriverPostgres:
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.Timeout.Duration,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				pgClient.Close()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		return postgres.NewLedgerStore(pgClient.Pool()), pgClient.Close, nil

	default:
		return nil, nil, fmt.Errorf("wire: unknown store driver %q", cfg.Store.Driver)
	}
}

// authorizer builds the privileged-write policy. The owner defaults to the
// operator account; extra operators turn the policy into a key set. With no
// account at all every privileged write is denied.
func authorizer(cfg config.AccessConfig, operator domain.Account) (access.Authorizer, error) {
	owner := operator
	if cfg.Owner != "" {
		acct, err := domain.ParseAccount(cfg.Owner)
		if err != nil {
			return nil, fmt.Errorf("wire: access owner: %w", err)
		}
		owner = acct
	}
	operators, err := domain.ParseAccounts(strings.Join(cfg.Operators, ","))
	if err != nil {
		return nil, fmt.Errorf("wire: access operators: %w", err)
	}

	switch {
	case owner == (domain.Account{}) && len(operators) == 0:
		return access.DenyAll{}, nil
	case len(operators) == 0:
		return access.NewOwner(owner), nil
	default:
		accounts := operators
		if owner != (domain.Account{}) {
			accounts = append([]domain.Account{owner}, operators...)
		}
		return access.NewKeySet(accounts...), nil
	}
}
