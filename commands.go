package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/acrylic/rights/config"
	"github.com/acrylic/rights/handlers"
	"github.com/acrylic/rights/legal"
	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/gin-gonic/gin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func (a *app) commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "serve",
			Usage: "Run the HTTP API and the job runner",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "no-worker",
					Usage: "Serve HTTP only; run jobs with the worker command",
				},
			},
			Action: a.serve,
		},
		{
			Name:   "worker",
			Usage:  "Run the job runner only",
			Action: a.worker,
		},
		{
			Name:   "migrate",
			Usage:  "Create or update database tables",
			Action: a.migrate,
		},
		{
			Name:  "init-config",
			Usage: "Write an example configuration file",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "path", Value: "config.toml"},
			},
			Action: initConfig,
		},
		{
			Name:  "onboard-artist",
			Usage: "Create a user and artist and request the artist contract",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "name", Usage: "Artist name", Required: true},
				&cli.StringFlag{Name: "first-name"},
				&cli.StringFlag{Name: "last-name"},
				&cli.StringFlag{Name: "spotify-url"},
			},
			Action: a.onboardArtist,
		},
		{
			Name:  "request-signatures",
			Usage: "Send a split sheet (or an artist contract) for signature now",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "uuid"},
			},
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "contract",
					Usage: "Treat uuid as an artist and request the artist contract",
				},
			},
			Action: a.requestSignatures,
		},
		{
			Name:  "reconcile",
			Usage: "Poll SignWell for pending split sheets",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 100},
			},
			Action: a.reconcile,
		},
		{
			Name:  "sheets",
			Usage: "List recent split sheets",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "status", Usage: "CREATED, PENDING, SIGNED or EXPIRED"},
				&cli.IntFlag{Name: "limit", Value: 20},
			},
			Action: a.sheets,
		},
	}
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	if err := config.Migrate(a.db); err != nil {
		return err
	}
	switch a.cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(a.cfg.Server.Mode)
	}

	pub, err := a.publisher()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           handlers.SetupRouter(a.store, a.log, a.webhooks(pub)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	if !cmd.Bool("no-worker") {
		runner := a.runner(ctx, pub)
		g.Go(func() error { return runner.Run(ctx) })
	}
	g.Go(func() error {
		a.log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *app) worker(ctx context.Context, cmd *cli.Command) error {
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	pub, err := a.publisher()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(ctx)
	defer stop()
	return a.runner(ctx, pub).Run(ctx)
}

func (a *app) migrate(ctx context.Context, cmd *cli.Command) error {
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	if err := config.Migrate(a.db); err != nil {
		return err
	}
	a.log.Info("database migrated", "driver", a.cfg.Database.Driver)
	return nil
}

func initConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = "config.toml"
	}
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func (a *app) onboardArtist(ctx context.Context, cmd *cli.Command) error {
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	artist, err := a.store.OnboardArtist(ctx, store.OnboardInput{
		Email:      cmd.String("email"),
		FirstName:  cmd.String("first-name"),
		LastName:   cmd.String("last-name"),
		ArtistName: cmd.String("name"),
		SpotifyURL: cmd.String("spotify-url"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("artist %s (%s) created, contract request queued\n", artist.Name, artist.UUID)
	return nil
}

func (a *app) requestSignatures(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "uuid")
	if err != nil {
		return err
	}
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	pub, err := a.publisher()
	if err != nil {
		return err
	}
	o := a.orchestrator(pub)

	var res legal.Result
	if cmd.Bool("contract") {
		artist, err := a.store.ArtistByUUID(ctx, id)
		if err != nil {
			return fmt.Errorf("artist %s: %w", id, err)
		}
		res = o.RequestContractSignature(ctx, artist.ID)
	} else {
		sheet, err := a.store.SplitSheetByUUID(ctx, id)
		if err != nil {
			return fmt.Errorf("split sheet %s: %w", id, err)
		}
		res = o.RequestSplitSheetSignatures(ctx, sheet.ID)
	}

	switch res.Outcome {
	case legal.Requested:
		fmt.Printf("requested, signature request id %s\n", res.RequestID)
	case legal.Skipped:
		fmt.Println("skipped:", res)
	default:
		return fmt.Errorf("signature request failed: %s", res)
	}
	return nil
}

func (a *app) reconcile(ctx context.Context, cmd *cli.Command) error {
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	pub, err := a.publisher()
	if err != nil {
		return err
	}
	report, err := a.orchestrator(pub).Reconcile(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	a.log.Info("reconciled",
		"checked", report.Checked,
		"signed", report.Signed,
		"expired", report.Expired,
		"errors", report.Errors,
	)
	return nil
}

func (a *app) sheets(ctx context.Context, cmd *cli.Command) error {
	if err := a.open(cmd); err != nil {
		return err
	}
	defer a.close()
	status := models.SplitSheetStatus(strings.ToUpper(cmd.String("status")))
	sheets, err := a.store.RecentSplitSheets(ctx, status, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	fmt.Println(renderSheets(sheets))
	return nil
}

func renderSheets(sheets []models.SplitSheet) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"UUID", "ISRC", "Track", "Artist", "Status", "Signed", "Last error"})
	for _, s := range sheets {
		artist := ""
		if s.Artist != nil {
			artist = s.Artist.Name
		}
		signed := ""
		if s.Signed != nil {
			signed = s.Signed.Format(time.DateOnly)
		}
		tw.AppendRow(table.Row{
			s.UUID, s.EffectiveISRC(), s.DisplayTrackName(), artist, s.Status, signed, truncate(s.LastError, 40),
		})
	}
	return tw.Render()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
