package scraper

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"igsaved/pkg/browser"
	"igsaved/pkg/config"
	"igsaved/pkg/discovery"
	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/ledger"
	"igsaved/pkg/logger"
	"igsaved/pkg/metrics"
	"igsaved/pkg/models"
	"igsaved/pkg/profile"
	"igsaved/pkg/ratelimit"
	"igsaved/pkg/retry"
	"igsaved/pkg/session"
	"igsaved/pkg/storage"
)

// SessionOpener opens authenticated browser sessions
type SessionOpener interface {
	Open(ctx context.Context, creds models.Credentials) (*session.Session, error)
}

// FeedDiscoverer finds new accounts in a saved feed
type FeedDiscoverer interface {
	Discover(ctx context.Context, b browser.Browser, owner string, target int, l *ledger.Ledger) (*discovery.Result, error)
}

// ProfileFetcher reads profile pages
type ProfileFetcher interface {
	Fetch(ctx context.Context, b browser.Browser, username string) (models.ProfileRecord, profile.Report)
}

// Notifier is told how runs end
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// Dependencies are the components a Scraper coordinates
type Dependencies struct {
	Sessions  SessionOpener
	Discovery FeedDiscoverer
	Profiles  ProfileFetcher
	Ledger    ledger.Store
	Pacer     ratelimit.Limiter

	// Optional
	Metrics  *metrics.Metrics
	Exporter *storage.Exporter
	Notifier Notifier
	Logger   logger.Logger

	// MaxProfilesLimit caps max_profiles; zero means no cap
	MaxProfilesLimit int
}

// Scraper orchestrates scrape runs
type Scraper struct {
	sessions  SessionOpener
	discovery FeedDiscoverer
	profiles  ProfileFetcher
	ledger    ledger.Store
	pacer     ratelimit.Limiter
	metrics   *metrics.Metrics
	exporter  *storage.Exporter
	notifier  Notifier
	limit     int
	logger    logger.Logger
}

// New creates a Scraper from its parts
func New(d Dependencies) (*Scraper, error) {
	switch {
	case d.Sessions == nil:
		return nil, fmt.Errorf("scraper: session opener is required")
	case d.Discovery == nil:
		return nil, fmt.Errorf("scraper: feed discoverer is required")
	case d.Profiles == nil:
		return nil, fmt.Errorf("scraper: profile fetcher is required")
	case d.Ledger == nil:
		return nil, fmt.Errorf("scraper: ledger store is required")
	}
	if d.Pacer == nil {
		d.Pacer = ratelimit.Unlimited{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}

	return &Scraper{
		sessions:  d.Sessions,
		discovery: d.Discovery,
		profiles:  d.Profiles,
		ledger:    d.Ledger,
		pacer:     d.Pacer,
		metrics:   d.Metrics,
		exporter:  d.Exporter,
		notifier:  d.Notifier,
		limit:     d.MaxProfilesLimit,
		logger:    d.Logger.WithField("component", "scraper"),
	}, nil
}

// Extras are the optional collaborators of Build
type Extras struct {
	Metrics *metrics.Metrics
	// Observer receives feed progress in addition to Metrics
	Observer discovery.Observer
	Notifier Notifier
	Logger   logger.Logger
}

// Build wires every component from cfg. The caller owns the returned
// Scraper and must Close it.
func Build(ctx context.Context, cfg *config.Config, launcher browser.Launcher, x Extras) (*Scraper, error) {
	log := x.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	m := x.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	store, err := ledger.Open(ctx, cfg.Ledger, log)
	if err != nil {
		return nil, err
	}

	var exporter *storage.Exporter
	if cfg.Output.SaveResults {
		exporter, err = storage.NewExporter(cfg.Output.Directory, log)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	sel := cfg.Selectors.WithDefaults()
	return New(Dependencies{
		Sessions:         session.NewController(launcher, cfg.Browser, sel, retry.FromConfig(cfg.Retry, log), log),
		Discovery:        discovery.NewEngine(discovery.OptionsFromConfig(cfg.Discovery), sel, discovery.Observers{m, x.Observer}, log),
		Profiles:         profile.NewFetcher(sel, cfg.Browser.NavigationTimeout, nil, log),
		Ledger:           store,
		Pacer:            ratelimit.FromConfig(cfg.RateLimit, log),
		Metrics:          m,
		Exporter:         exporter,
		Notifier:         x.Notifier,
		Logger:           log,
		MaxProfilesLimit: cfg.Discovery.MaxProfilesLimit,
	})
}

// Close releases the ledger store
func (s *Scraper) Close() error {
	return s.ledger.Close()
}

// Run performs one scrape. Every browser resource the run acquired is
// released before it returns, whatever the outcome.
func (s *Scraper) Run(ctx context.Context, req models.ScrapeRequest) (resp *models.ScrapeResponse, err error) {
	summary := models.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.WithField("run_id", summary.ID)
	finish := s.metrics.RunStarted()

	defer func() {
		if r := recover(); r != nil {
			err = &igerrors.Error{
				Type:    igerrors.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected panic: %v", r),
				Trace:   string(debug.Stack()),
			}
			resp = nil
		}
		if err != nil {
			if ctx.Err() == nil && !igerrors.IsType(err, igerrors.ErrorTypeValidation) {
				err = igerrors.WithTrace(err)
			}
			finish(failureOutcome(ctx, err))
			log.WithError(err).WithField("type", string(igerrors.TypeOf(err))).Error("Run failed")
			s.notifyError(err)
			return
		}
		finish(resp.Run.Outcome)
	}()

	req.Normalize()
	if err := req.Validate(s.limit); err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeValidation, err, "invalid scrape request")
	}
	summary.Requested = req.MaxProfiles

	l, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, storageError(err, "load ledger")
	}

	sess, err := s.sessions.Open(ctx, req.Cookies)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	summary.Owner = sess.Owner
	log = log.WithField("owner", sess.Owner)

	log.InfoWithFields("Run started", map[string]interface{}{
		"requested":   req.MaxProfiles,
		"ledger_size": l.Len(),
		"dedup_key":   string(l.Key()),
	})

	res, err := s.discovery.Discover(ctx, sess.Browser, sess.Owner, req.MaxProfiles, l)
	if err != nil {
		return nil, err
	}
	summary.Outcome = string(res.Outcome)
	summary.Discovered = len(res.Accounts)
	summary.PostsOpened = res.Opened()
	summary.PostFailures = res.Failures()
	summary.ScrollAttempts = res.ScrollAttempts

	profiles := make([]models.ProfileRecord, 0, len(res.Accounts))
	for _, acct := range res.Accounts {
		if err := s.pace(ctx); err != nil {
			return nil, err
		}

		rec, report := s.profiles.Fetch(ctx, sess.Browser, acct.Username)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.metrics.ObserveProfile(report)
		for _, field := range report.Failed() {
			if summary.FieldFailures == nil {
				summary.FieldFailures = make(map[string]int)
			}
			summary.FieldFailures[field]++
		}

		rec.SourcePostURL = acct.SourcePostURL
		profiles = append(profiles, rec)
	}

	if l.Dirty() {
		if err := s.ledger.Save(ctx, l); err != nil {
			return nil, storageError(err, "save ledger")
		}
	} else {
		log.Debug("Ledger unchanged, skipping save")
	}

	summary.Duration = time.Since(summary.StartedAt)
	resp = &models.ScrapeResponse{Profiles: profiles, Run: summary}

	log.InfoWithFields("Run finished", map[string]interface{}{
		"outcome":         summary.Outcome,
		"profiles":        len(profiles),
		"posts_opened":    summary.PostsOpened,
		"post_failures":   summary.PostFailures,
		"scroll_attempts": summary.ScrollAttempts,
		"duration":        summary.Duration.String(),
	})

	if s.exporter != nil {
		if _, err := s.exporter.SaveRun(resp); err != nil {
			log.WithError(err).Warn("Failed to export run results")
		}
	}
	s.notifySuccess(resp)
	return resp, nil
}

func (s *Scraper) pace(ctx context.Context) error {
	start := time.Now()
	if err := s.pacer.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	s.metrics.ObservePacerWait(time.Since(start))
	return nil
}

func (s *Scraper) notifySuccess(resp *models.ScrapeResponse) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendSuccess("igsaved run complete",
		fmt.Sprintf("%d profiles from @%s's saved posts (%s)", len(resp.Profiles), resp.Run.Owner, resp.Run.Outcome))
}

func (s *Scraper) notifyError(err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendError("igsaved run failed", err.Error())
}

// storageError types an untyped ledger failure as a storage error
func storageError(err error, what string) error {
	if igerrors.TypeOf(err) != igerrors.ErrorTypeUnknown {
		return err
	}
	return igerrors.Wrap(igerrors.ErrorTypeStorage, err, what)
}

// failureOutcome labels a failed run for metrics
func failureOutcome(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	return "error_" + string(igerrors.TypeOf(err))
}
