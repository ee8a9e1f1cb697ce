package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/mapping/internal/app"
	"github.com/dropDatabas3/mapping/internal/config"
	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/purge"
	"github.com/dropDatabas3/mapping/internal/runlock"
	"github.com/dropDatabas3/mapping/internal/store"
)

var version = "dev"

func main() {
	// .env es opcional; las variables del sistema siguen valiendo.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	var (
		configPath = envOr("CONFIG_PATH", "")
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "mapping",
		Short:         "Ruteo primary/replica y purga de cuentas retiradas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			logger.Init(app.LoggerConfig(cfg, version))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Archivo YAML de configuración (env CONFIG_PATH)")

	// build arma el contenedor con un ctx que se cancela con SIGINT/SIGTERM.
	build := func(cmd *cobra.Command) (context.Context, context.CancelFunc, *app.Container, error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		c, err := app.Build(ctx, cfg, app.Options{Version: version})
		if err != nil {
			stop()
			return nil, nil, nil, err
		}
		return ctx, stop, c, nil
	}

	// ─── serve ───
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Corre el scheduler de purga y el servidor de ops",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop, c, err := build(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer c.Close()

			log := logger.L()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := c.Ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			if cfg.Scheduler.Enabled {
				g.Go(func() error { return c.Scheduler.Start(gctx) })
			} else {
				log.Warn("scheduler disabled")
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return c.Ops.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			log.Info("shutdown complete")
			return err
		},
	}

	// ─── purge ───
	var (
		purgeAccount int64
		purgeDryRun  bool
	)
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Corre la purga una vez bajo el run-lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop, c, err := build(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer c.Close()

			if purgeDryRun {
				accs, err := c.Purger.Eligible(ctx)
				if err != nil {
					return err
				}
				if purgeAccount > 0 {
					accs = onlyAccount(accs, purgeAccount)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNICKNAME\tDELETED_AT")
				for _, a := range accs {
					at := ""
					if a.DeletedAt != nil {
						at = a.DeletedAt.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", a.ID, a.Nickname, at)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				logger.S().Infof("%d accounts eligible (cutoff %s)",
					len(accs), c.Purger.Cutoff(time.Now()).Format(time.RFC3339))
				return nil
			}

			var report *purge.Report
			once := *c.Scheduler
			once.Job = func(ctx context.Context) error {
				if purgeAccount > 0 {
					res := c.Purger.PurgeAccount(ctx, purgeAccount)
					report = &purge.Report{Accounts: []purge.AccountResult{res}}
					return res.Err
				}
				r, err := c.Purger.Run(ctx)
				report = r
				return err
			}
			runErr := once.RunNow(ctx)
			if errors.Is(runErr, runlock.ErrHeld) {
				return fmt.Errorf("another purge is running: %w", runErr)
			}
			if report != nil {
				printReport(cmd, report)
			}
			return runErr
		},
	}
	purgeCmd.Flags().Int64Var(&purgeAccount, "account", 0, "Purgar solo esta cuenta (con --dry-run, solo listarla si es elegible)")
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "Listar cuentas elegibles sin borrar")

	// ─── migrate ───
	migrateCmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Aplica o revierte las migraciones en primary",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cfg.Storage.Primary
			return store.Migrate(store.AdapterConfig{
				Name:           p.Driver,
				DSN:            p.DSN,
				ConnectTimeout: p.ConnectTimeout,
			}, store.MigrateDirection(args[0]))
		},
	}

	// ─── withdraw ───
	withdrawCmd := &cobra.Command{
		Use:   "withdraw ID",
		Short: "Marca una cuenta como retirada (soft delete)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid account id %q", args[0])
			}
			ctx, stop, c, err := build(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer c.Close()

			if err := c.Accounts.Withdraw(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d withdrawn\n", id)
			return nil
		},
	}

	root.AddCommand(serveCmd, purgeCmd, migrateCmd, withdrawCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func printReport(cmd *cobra.Command, r *purge.Report) {
	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tOUTCOME\tROWS\tBLOBS\tERROR")
	for _, a := range r.Accounts {
		msg := ""
		if a.Err != nil {
			msg = a.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", a.AccountID, a.Outcome, a.RowsDeleted, a.BlobsDeleted, msg)
	}
	_ = tw.Flush()
	if r.RunID != uuid.Nil {
		fmt.Fprintf(w, "\nrun %s: eligible=%d purged=%d failed=%d rows=%d blobs=%d in %s\n",
			r.RunID, r.Eligible, r.Purged, r.Failed, r.RowsDeleted, r.BlobsDeleted, r.Duration().Round(time.Millisecond))
	}
}

// onlyAccount filtra la lista de elegibles a una cuenta (vacía si no lo es).
func onlyAccount(accs []repository.Account, id int64) []repository.Account {
	for _, a := range accs {
		if a.ID == id {
			return []repository.Account{a}
		}
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
