package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/config"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/database"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/inbound"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/logging"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/network"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/party"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/remote"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/server"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/session"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lenden-syncd",
		Short: "Len Den Khata offline-first sync daemon",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Status API listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("owner-id", defaults.GetString("owner.id"), "Owner identity for this sync session")
	cmd.PersistentFlags().Int("sync-backoff-seconds", defaults.GetInt("sync.backoff_seconds"), "Base delay between worker retries")
	cmd.PersistentFlags().Int("sync-max-retries", defaults.GetInt("sync.max_retries"), "Worker retry budget per scheduling")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "owner.id", "owner-id")
	bindFlag(cmd, "sync.backoff_seconds", "sync-backoff-seconds")
	bindFlag(cmd, "sync.max_retries", "sync-max-retries")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runDaemon(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ownerSession, err := session.New(appConfig.OwnerID)
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	customerLedger, err := ledger.New(db, ledger.CustomerStatusTable)
	if err != nil {
		return err
	}
	monthBookLedger, err := ledger.New(db, ledger.MonthBookStatusTable)
	if err != nil {
		return err
	}

	customerStore, err := record.NewCustomerTransactionStore(db)
	if err != nil {
		return err
	}
	monthBookStore, err := record.NewMonthBookTransactionStore(db)
	if err != nil {
		return err
	}
	partyService, err := party.NewService(party.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	// A production deployment plugs its document-store adapter in here;
	// the in-process store keeps the daemon self-contained.
	remoteStore := remote.NewMemoryStore()
	monitor := network.NewStatusMonitor(true)

	scheduler, err := syncer.NewScheduler(signalCtx, syncer.SchedulerConfig{
		Network:     monitor,
		Backoff:     appConfig.SyncBackoff,
		MaxAttempts: appConfig.SyncMaxRetries,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	verticals := []struct {
		work       syncer.WorkKind
		ledger     *ledger.Ledger
		records    record.Store
		collection string
	}{
		{syncer.WorkCustomerSync, customerLedger, customerStore, record.CustomerCollection},
		{syncer.WorkMonthBookSync, monthBookLedger, monthBookStore, record.MonthBookCollection},
	}

	managers := make([]*syncer.Manager, 0, len(verticals))
	for _, vertical := range verticals {
		worker, err := syncer.NewWorker(syncer.WorkerConfig{
			Ledger:     vertical.ledger,
			Records:    vertical.records,
			Remote:     remoteStore,
			Collection: vertical.collection,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		scheduler.Register(vertical.work, worker)

		manager, err := syncer.NewManager(signalCtx, syncer.ManagerConfig{
			Ledger:     vertical.ledger,
			Records:    vertical.records,
			Remote:     remoteStore,
			Collection: vertical.collection,
			Work:       vertical.work,
			Scheduler:  scheduler,
			Network:    monitor,
			Session:    ownerSession,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		managers = append(managers, manager)
	}

	processor, err := inbound.NewProcessor(inbound.ProcessorConfig{
		Transactions: customerStore,
		Parties:      partyService,
		Session:      ownerSession,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	listener, err := inbound.NewListener(inbound.ListenerConfig{
		Remote:     remoteStore,
		Collection: record.CustomerCollection,
		Session:    ownerSession,
		Processor:  processor,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	if err := listener.Start(signalCtx); err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		CustomerLedger:  customerLedger,
		MonthBookLedger: monthBookLedger,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, manager := range managers {
			manager.Close()
		}
		listener.Wait()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
