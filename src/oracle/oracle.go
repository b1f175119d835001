package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/config"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/dashrpc"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/health"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/metrics"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/platform"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/scheduler"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/status"
	oraclesync "github.com/stake-plus/dash-gov-oracle/src/oracle/sync"
	"github.com/stake-plus/dash-gov-oracle/src/shared/retry"
)

// chainNames maps the NETWORK setting to dashd's getblockchaininfo
// chain field.
var chainNames = map[string]string{
	"mainnet": "main",
	"testnet": "test",
	"regtest": "regtest",
}

type syncTask interface {
	Name() string
	Sync(ctx context.Context) (oraclesync.Result, error)
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Fatal().Str("level", cfg.LogLevel).Msg("invalid LOG_LEVEL")
	} else {
		log = log.Level(lvl)
	}

	params, err := status.ParamsForNetwork(cfg.Network)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid NETWORK")
	}
	policy := retry.FixedDelay(cfg.RetryAttempts, cfg.RetryDelay)

	store, err := platform.ConnectMySQL(cfg.MySQLDSN, log.With().Str("component", "store").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connect failed")
	}

	signer, err := platform.NewSignerFromHex(cfg.IdentityID, cfg.IdentityPrivateKey)
	if err != nil {
		log.Fatal().Err(err).Msg("identity key rejected")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		log.Info().Msg("change stream enabled")
	}

	pub := platform.NewPublisher(store, signer, cfg.ContractID, policy,
		rdb, log.With().Str("component", "platform").Logger())
	if err := pub.EnsureContract(context.Background(), cfg.BootstrapContract); err != nil {
		log.Fatal().Err(err).Msg("contract verification failed")
	}

	rpc := dashrpc.New(dashrpc.Options{
		URL:      cfg.DashdURL(),
		User:     cfg.DashdUser,
		Password: cfg.DashdPassword,
		Timeout:  cfg.DashdTimeout,
		Policy:   policy,
		Logger:   log.With().Str("component", "dashrpc").Logger(),
	})

	height, err := rpc.BlockCount(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("dashd unreachable")
	}
	info, err := rpc.BlockchainInfo(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("dashd unreachable")
	}
	if info.Chain != chainNames[cfg.Network] {
		log.Fatal().Str("network", cfg.Network).Str("chain", info.Chain).
			Msg("node chain does not match NETWORK")
	}
	log.Info().Int64("height", height).Str("chain", info.Chain).
		Str("identity", signer.IdentityID()).Msg("connected to dashd")

	sched := scheduler.New(log.With().Str("component", "scheduler").Logger())
	checker := health.NewChecker(rpc, pub, sched.Status,
		log.With().Str("component", "health").Logger())

	wrap := func(task syncTask) scheduler.Task {
		name := task.Name()
		tlog := log.With().Str("task", name).Logger()
		return func(ctx context.Context) error {
			res, err := task.Sync(ctx)
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			metrics.SyncRuns.WithLabelValues(name, outcome).Inc()
			checker.Report(name, health.TaskReport{
				Timestamp: time.Now(),
				Success:   err == nil,
				Count:     res.Created + res.Updated + res.Deleted,
			})
			if err != nil {
				return err
			}
			tlog.Info().Str("result", res.String()).Msg("cycle complete")
			return nil
		}
	}

	proposals := oraclesync.NewProposalSync(rpc, pub, params, log.With().Str("task", "proposals").Logger())
	votes := oraclesync.NewVoteSync(rpc, pub, log.With().Str("task", "votes").Logger())
	masternodes := oraclesync.NewMasternodeSync(rpc, pub, log.With().Str("task", "masternodes").Logger())

	sched.Register(proposals.Name(), cfg.ProposalInterval, wrap(proposals), false)
	sched.Register(votes.Name(), cfg.VoteInterval, wrap(votes), false)
	sched.Register(masternodes.Name(), cfg.MasternodeInterval, wrap(masternodes), false)
	sched.Register("health", health.CheckInterval, checker.Check, false)
	sched.Start()

	var httpSrv *http.Server
	if cfg.HealthEnabled {
		httpSrv = health.NewServer(":"+cfg.HealthPort, checker,
			log.With().Str("component", "health").Logger())
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("health server failed")
			}
		}()
		log.Info().Str("port", cfg.HealthPort).Msg("health server listening")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	sched.Stop()
	if httpSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = httpSrv.Shutdown(shutCtx)
		cancel()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("store close failed")
	}
	log.Info().Msg("stopped")
}
