package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	attHandler "presence/internal/attendance/handler"
	attService "presence/internal/attendance/service"
	attStore "presence/internal/attendance/store"
	credHandler "presence/internal/credential/handler"
	"presence/internal/credential/issuer"
	credStore "presence/internal/credential/store"
	credRedis "presence/internal/credential/store/redis"
	"presence/internal/credential/verifier"
	idHandler "presence/internal/identity/handler"
	idmodels "presence/internal/identity/models"
	idService "presence/internal/identity/service"
	idStore "presence/internal/identity/store"
	"presence/internal/keys"
	"presence/internal/platform/config"
	"presence/internal/platform/database"
	"presence/internal/platform/health"
	"presence/internal/platform/kafka/producer"
	"presence/internal/platform/metrics"
	platformRedis "presence/internal/platform/redis"
	audit "presence/pkg/platform/audit"
	"presence/pkg/platform/audit/outbox"
	outboxMetrics "presence/pkg/platform/audit/outbox/metrics"
	outboxPostgres "presence/pkg/platform/audit/outbox/store/postgres"
	"presence/pkg/platform/audit/outbox/worker"
	"presence/pkg/platform/audit/publisher"
	auditKafka "presence/pkg/platform/audit/store/kafka"
	"presence/pkg/platform/middleware/admin"
	"presence/pkg/platform/middleware/request"
)

const (
	issuerName          = "Presence Issuer"
	auditBufferSize     = 1024
	producerCloseBudget = 5 * time.Second
)

// app is the constructed component graph.
type app struct {
	router    http.Handler
	issuerDID idmodels.DID
	relay     *worker.Worker
	closers   []func()
}

// close releases resources in reverse construction order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type stores struct {
	identities  idStore.Store
	attendance  attStore.Store
	credentials credStore.Store
}

func memoryStores() stores {
	return stores{
		identities:  idStore.NewInMemoryStore(),
		attendance:  attStore.NewInMemoryStore(),
		credentials: credStore.NewInMemoryStore(),
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		identities:  idStore.NewPostgres(db),
		attendance:  attStore.NewPostgres(db),
		credentials: credStore.NewPostgres(db),
	}
}

// build wires every component once. Postgres, Redis and Kafka are optional;
// without them the service runs on in-memory stores and logs audit events only.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	m := metrics.New(reg)
	checks := health.New(cfg.Server.Environment)

	pool, err := database.New(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	st := memoryStores()
	var db *sql.DB
	if pool != nil {
		a.closers = append(a.closers, func() { _ = pool.Close() })
		db = pool.DB()
		if err := database.Migrate(ctx, db); err != nil {
			return nil, err
		}
		if err := reg.Register(collectors.NewDBStatsCollector(db, "presence")); err != nil {
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
		checks.RegisterCheck("postgres", pool.Health)
		st = postgresStores(db)
	}

	emitter, err := a.auditEmitter(cfg, log, db, checks, reg)
	if err != nil {
		return nil, err
	}
	auditor := audit.NewLogger(log, emitter)

	identities := idService.New(st.identities,
		idService.WithLogger(log),
		idService.WithAuditor(auditor),
		idService.WithMetrics(m),
	)

	signer, err := issuerSigner(ctx, cfg, log, identities)
	if err != nil {
		return nil, err
	}

	certificates := &certificateCounter{}
	ledger := attService.New(st.attendance, identities, attService.Policy{
		RequiredSessions: cfg.Policy.RequiredSessions,
		Threshold:        cfg.Policy.Threshold,
	},
		attService.WithLogger(log),
		attService.WithAuditor(auditor),
		attService.WithMetrics(m),
		attService.WithCertificateCounter(certificates),
	)

	var revocations verifier.RevocationSet = st.credentials
	issuerOpts := []issuer.Option{
		issuer.WithLogger(log),
		issuer.WithAuditor(auditor),
		issuer.WithMetrics(m),
	}
	rdb, err := platformRedis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.RegisterPoolMetrics(reg); err != nil {
			return nil, err
		}
		checks.RegisterCheck("redis", rdb.Health)
		cache := credRedis.NewRevocationCache(rdb, st.credentials, cfg.Redis.RevocationTTL, log)
		revocations = cache
		issuerOpts = append(issuerOpts, issuer.WithRevocationCache(cache))
	}

	issuerSvc, err := issuer.New(st.credentials, ledger, signer, issuer.Policy{
		RequiredSessions: cfg.Policy.RequiredSessions,
		Threshold:        cfg.Policy.Threshold,
	}, issuerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create issuer: %w", err)
	}
	certificates.issuer = issuerSvc
	a.issuerDID = issuerSvc.IssuerDID()

	var peers []idmodels.DID
	for _, peer := range cfg.TrustedPeers() {
		peers = append(peers, idmodels.DID(peer))
	}
	verifierSvc := verifier.New(identities, identities, revocations,
		verifier.WithTrustedIssuers(issuerSvc.IssuerDID()),
		verifier.WithTrustedPeers(peers...),
		verifier.WithLogger(log),
		verifier.WithAuditor(auditor),
		verifier.WithMetrics(m),
	)
	snapshots := verifier.NewSnapshotter(identities, issuerSvc, signer)

	a.router = newRouter(cfg, log,
		admin.NewAuthenticator(cfg.Admin.JWTSecret, cfg.Admin.Audience),
		checks,
		request.NewMetrics(reg),
		idHandler.New(identities, log),
		attHandler.New(ledger, cfg.Policy.RequiredSessions, log),
		credHandler.New(issuerSvc, verifierSvc, snapshots, log),
	)
	return a, nil
}

// issuerSigner unseals (or creates) the issuer key, registers its DID and
// returns a signer whose key id names the registered key version.
func issuerSigner(ctx context.Context, cfg *config.Config, log *slog.Logger, identities *idService.Service) (*keys.Ed25519Signer, error) {
	priv, created, err := keys.LoadOrCreate(cfg.Issuer.KeystorePath, []byte(cfg.Passphrase()), keys.NewGenerator(nil))
	if err != nil {
		return nil, fmt.Errorf("load issuer key: %w", err)
	}
	if created {
		log.InfoContext(ctx, "issuer key created", "path", cfg.Issuer.KeystorePath)
	}
	pub := priv.Public().(ed25519.PublicKey)

	record, err := identities.RegisterIssuer(ctx, pub, issuerName)
	if err != nil {
		return nil, fmt.Errorf("register issuer: %w", err)
	}
	version, err := keyVersion(record, pub)
	if err != nil {
		return nil, err
	}
	return keys.NewEd25519Signer(priv, idmodels.MethodID(record.DID, version))
}

// auditEmitter builds the audit pipeline. With Kafka and Postgres, events go
// through the outbox and a relay; with Kafka alone they are produced
// directly. Without Kafka it returns nil and audit events are logged only.
func (a *app) auditEmitter(cfg *config.Config, log *slog.Logger, db *sql.DB, checks *health.Handler, reg prometheus.Registerer) (audit.Emitter, error) {
	if cfg.Kafka.Brokers == "" {
		return nil, nil
	}
	prod, err := producer.New(producer.Config{
		Brokers:         cfg.Kafka.Brokers,
		ClientID:        "presence",
		Acks:            cfg.Kafka.Acks,
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = prod.Close(producerCloseBudget) })
	checks.RegisterCheck("kafka", prod.Health)

	var sink audit.Store
	if db != nil {
		store := outboxPostgres.New(db)
		sink = outbox.NewRecorder(store)
		a.relay = worker.New(store, prod,
			worker.WithTopic(cfg.Kafka.AuditTopic),
			worker.WithLogger(log),
			worker.WithMetrics(outboxMetrics.New(reg)),
		)
	} else {
		sink = auditKafka.New(prod, cfg.Kafka.AuditTopic)
	}

	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithPublisherLogger(log),
	)
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}
