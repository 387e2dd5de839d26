package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/acrylic/rights/config"
	"github.com/acrylic/rights/enrich"
	"github.com/acrylic/rights/events"
	"github.com/acrylic/rights/hellosign"
	"github.com/acrylic/rights/jobs"
	"github.com/acrylic/rights/legal"
	"github.com/acrylic/rights/pdf"
	"github.com/acrylic/rights/signwell"
	"github.com/acrylic/rights/store"
	"github.com/acrylic/rights/webhooks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

const eventSource = "acrylic/rights"

// app holds what the commands share. Fields are filled by open.
type app struct {
	cfg   *config.Config
	log   *log.Logger
	db    *gorm.DB
	store *store.Store
}

// open loads the configuration and connects to the database.
func (a *app) open(cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = config.NewLogger(nil, cfg.Log.Level)

	db, err := config.OpenDB(cfg.Database, a.log)
	if err != nil {
		return err
	}
	a.db = db
	a.store = store.New(db)
	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) publisher() (events.Publisher, error) {
	source := a.cfg.Events.Source
	if source == "" {
		source = eventSource
	}
	return events.New(a.cfg.Events.Sink, source, a.log)
}

func (a *app) signwell() *signwell.Client {
	sw := a.cfg.SignWell
	opts := signwell.Options{
		BaseURL:    sw.BaseURL,
		APIKey:     sw.APIKey,
		WebhookKey: sw.WebhookKey,
		TestMode:   sw.TestMode,
	}
	if sw.TimeoutSeconds > 0 {
		opts.HTTPClient = &http.Client{Timeout: time.Duration(sw.TimeoutSeconds) * time.Second}
	}
	return signwell.New(opts)
}

func (a *app) orchestrator(pub events.Publisher) *legal.Orchestrator {
	if a.cfg.SignWell.APIKey == "" {
		a.log.Warn("signwell api key is not set, signature requests will be rejected")
	}
	return legal.NewOrchestrator(a.signwell(), pdf.NewRenderer(), a.store, pub, a.log.WithPrefix("legal"))
}

func (a *app) webhooks(pub events.Publisher) *webhooks.Handler {
	hs := hellosign.NewVerifier(a.cfg.HelloSign.APIKey)
	return webhooks.New(a.store, a.signwell(), hs, pub, a.log.WithPrefix("webhooks"))
}

// runner builds the job runner with every handler registered.
func (a *app) runner(ctx context.Context, pub events.Publisher) *jobs.Runner {
	jc := a.cfg.Jobs
	r := jobs.NewRunner(a.db, a.log.WithPrefix("jobs"), jobs.Options{
		Workers:      jc.Workers,
		PollInterval: time.Duration(jc.PollIntervalMS) * time.Millisecond,
		MaxAttempts:  jc.MaxAttempts,
	})
	a.orchestrator(pub).Register(r)

	if a.cfg.Spotify.Enabled() {
		catalog := enrich.NewSpotifyCatalog(ctx, a.cfg.Spotify.ClientID, a.cfg.Spotify.ClientSecret)
		enrich.New(catalog, a.store, a.log.WithPrefix("enrich")).Register(r)
		if jc.SpotifyRate > 0 {
			r.Limit(store.KindLoadSplitSheetSpotify, jc.SpotifyRate)
			r.Limit(store.KindLoadTrackSpotifyID, jc.SpotifyRate)
		}
	} else {
		a.log.Warn("spotify credentials are not set, enrichment jobs will fail")
	}
	return r
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("missing argument %q", name)
	}
	return v, nil
}
