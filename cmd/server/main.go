// Command server runs the portfolio API: claim ledger, message payment
// protocol, policy edit protocol, and the portfolio vault, wired over an
// in-process settlement bank and a simulated trading venue.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"govvault/internal/authz"
	"govvault/internal/events"
	jwttoken "govvault/internal/jwt_token"
	"govvault/internal/ledger"
	"govvault/internal/message"
	"govvault/internal/platform/config"
	"govvault/internal/platform/health"
	"govvault/internal/platform/httpserver"
	"govvault/internal/platform/kafka/producer"
	"govvault/internal/platform/logger"
	platformredis "govvault/internal/platform/redis"
	"govvault/internal/policy"
	"govvault/internal/ratelimit"
	httptransport "govvault/internal/transport/http"
	"govvault/internal/treasury"
	"govvault/internal/vault"
	"govvault/internal/venue"
	"govvault/pkg/domain"
	"govvault/pkg/platform/middleware/request"
)

const (
	tokenTTL        = 24 * time.Hour
	shutdownTimeout = 15 * time.Second

	// venueLiquidity seeds the simulated venue's reserve per asset.
	venueLiquidity = 1_000_000 * domain.Unit
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSigningKey == "" {
		return errors.New("GOVVAULT_JWT_SIGNING_KEY is required")
	}

	// Event fan-out: in-memory ring for the introspection API, structured
	// log mirror, kafka when brokers are configured.
	recent := events.NewMemorySink(512)
	sinks := []events.Sink{recent, events.NewLogSink(log)}

	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err = producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer kafkaProducer.Close()
		sinks = append(sinks, events.NewKafkaSink(kafkaProducer, cfg.KafkaTopic, log))
		log.Info("kafka event sink enabled", "topic", cfg.KafkaTopic)
	}
	emitter := events.NewEmitter(sinks...)

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("policy read cache enabled")
	}

	roles := authz.NewTable()
	bank := treasury.NewInMemoryBank()
	claims := ledger.New(roles, emitter, log, ledger.NewMetrics())

	// Each protocol acts on the ledger under its own identity. Burner is
	// granted alongside minter: the protocols unwind their own mints on
	// partial failure, and the vault burns redeemed claims.
	messageSelf := protocolIdentity("message-protocol")
	policySelf := protocolIdentity("policy-protocol")
	vaultSelf := protocolIdentity("vault")
	for _, self := range []domain.Address{messageSelf, policySelf, vaultSelf} {
		roles.Grant(authz.RoleMinter, self)
		roles.Grant(authz.RoleBurner, self)
	}
	roles.Grant(authz.RolePauser, cfg.Owner)

	messageService := message.NewService(message.Config{
		Self:             messageSelf,
		FeeAsset:         cfg.FeeAsset,
		Fee:              cfg.MessageFee,
		Custody:          cfg.VaultCustody,
		RevenueRecipient: cfg.RevenueRecipient,
	}, message.NewStore(), claims, bank, roles, emitter, log, message.NewMetrics())

	policyService := policy.NewService(policy.Config{
		Self:             policySelf,
		FeeAsset:         cfg.FeeAsset,
		Custody:          cfg.VaultCustody,
		RevenueRecipient: cfg.RevenueRecipient,
		MaxSize:          cfg.MaxPolicySize,
		Initial:          cfg.InitialPolicy,
	}, claims, bank, emitter, log, policy.NewMetrics(), policy.NewCache(redisClient, cfg.PolicyCacheTTL))

	sim := venue.New(venue.Config{
		Custody:     cfg.VaultCustody,
		Reserve:     protocolIdentity("venue-reserve"),
		RewardAsset: cfg.FeeAsset,
		SpreadBps:   30,
	}, bank)
	bank.Credit(cfg.FeeAsset, protocolIdentity("venue-reserve"), venueLiquidity)
	if cfg.RedemptionAsset != cfg.FeeAsset {
		bank.Credit(cfg.RedemptionAsset, protocolIdentity("venue-reserve"), venueLiquidity)
	}

	vaultService := vault.NewService(vault.Config{
		Self:            vaultSelf,
		Custody:         cfg.VaultCustody,
		RedemptionAsset: cfg.RedemptionAsset,
		UnlockAt:        time.Now().Add(cfg.LockDuration),
		Owner:           cfg.Owner,
		Agent:           cfg.Agent,
	}, roles, claims, bank, sim, sim, sim, emitter, log, vault.NewMetrics())

	healthHandler := health.New()
	if kafkaProducer != nil {
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if !kafkaProducer.Healthy(ctx) {
				return errors.New("kafka unreachable")
			}
			return nil
		})
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	// Shared fixed-window limiter when redis is available, per-process
	// sliding window otherwise.
	var limiter ratelimit.Store = ratelimit.NewMemoryStore()
	if rs := ratelimit.NewRedisStore(redisClient); rs != nil {
		limiter = rs
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:  log,
		Tokens:  jwttoken.NewJWTService(cfg.JWTSigningKey, tokenTTL),
		Message: messageService,
		Policy:  policyService,
		Vault:   vaultService,
		Claims:  claims,
		Recent:  recent,
		Health:  healthHandler,
		Latency: request.NewMetrics(),
		Limiter: limiter,
	})

	server := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if redisClient != nil {
		g.Go(func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					redisClient.RecordPoolStats()
				}
			}
		})
	}

	return g.Wait()
}

// protocolIdentity derives a stable ledger identity for an internal actor
// from its name, using the same trailing-20-bytes convention as key-derived
// identities.
func protocolIdentity(name string) domain.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("govvault/identity/" + name))
	sum := h.Sum(nil)
	var a domain.Address
	copy(a[:], sum[len(sum)-len(a):])
	return a
}
