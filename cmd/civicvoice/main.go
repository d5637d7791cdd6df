package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/app"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/config"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/feed"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/media"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/metrics"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/narration"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/search"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/seed"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

var (
	jsonOutput bool
	env        *environment
)

var rootCmd = &cobra.Command{
	Use:           "civicvoice",
	Short:         "Report and follow civic issues",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		built, err := buildEnvironment(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		env = built
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cobra.OnFinalize(func() {
		if env != nil {
			env.Close()
			env = nil
		}
	})
}

// environment is the wired application for one CLI invocation.
type environment struct {
	cfg     config.Config
	service *app.Service
	metrics *metrics.Metrics
	feed    *feed.RedisFeed
	meili   *search.Meili

	// onFrame receives narration snapshots; set it before starting a session.
	onFrame narration.Listener
}

func buildEnvironment(ctx context.Context, cfg config.Config) (*environment, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e := &environment{cfg: cfg, metrics: metrics.New()}

	storeOpts := []store.Option{}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisFeed, err := feed.NewRedisFeed(cfg.RedisURL, cfg.FeedChannel)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		redisFeed.SetObserver(e.metrics)
		e.feed = redisFeed
		storeOpts = append(storeOpts, store.WithNotifier(redisFeed))
	}
	dataStore := store.NewMemoryStore(storeOpts...)

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		e.meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(dataStore, e.meili, e.metrics)

	var narrator narration.Narrator = narration.Unavailable{}
	if cfg.NarrationEnabled {
		narrator = narration.NewTicker(cfg.NarrationWPM)
	}
	machine := narration.NewMachine(narrator,
		narration.WithObserver(e.metrics),
		narration.WithListener(func(s narration.Snapshot) {
			if e.onFrame != nil {
				e.onFrame(s)
			}
		}),
	)

	opts := []app.Option{app.WithMetrics(e.metrics)}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		presigner, err := media.NewPresigner(media.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			TTL:       cfg.PresignTTL,
		})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("media presigner: %w", err)
		}
		opts = append(opts, app.WithMedia(presigner))
	}
	e.service = app.New(cfg, dataStore, searchService, machine, opts...)

	data, err := seed.LoadFile(cfg.SeedFile, time.Now())
	if err != nil {
		e.Close()
		return nil, err
	}
	if err := e.service.Bootstrap(ctx, data); err != nil {
		e.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return e, nil
}

func (e *environment) Close() {
	if e.service != nil {
		e.service.StopNarration()
	}
	if e.meili != nil {
		e.meili.Close()
	}
	if e.feed != nil {
		if err := e.feed.Close(); err != nil {
			log.Printf("feed: close: %v", err)
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
