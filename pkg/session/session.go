package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wosexport/pkg/browser"
	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
	"wosexport/pkg/human"
	"wosexport/pkg/logger"
	"wosexport/pkg/pacing"
)

// Credentials log in to a channel. An empty username leaves the whole form
// to the operator.
type Credentials struct {
	Username string
	Password string
}

// LaunchFunc starts a browser
type LaunchFunc func(ctx context.Context, opts browser.Options, log logger.Logger) (browser.Driver, error)

// LaunchChrome is the default LaunchFunc
func LaunchChrome(ctx context.Context, opts browser.Options, log logger.Logger) (browser.Driver, error) {
	return browser.Launch(ctx, opts, log)
}

// Manager opens browser sessions logged in to a channel
type Manager struct {
	cfg     *config.Config
	channel Channel
	pacer   *pacing.Pacer
	launch  LaunchFunc
	logger  logger.Logger
}

// NewManager resolves the configured channel
func NewManager(cfg *config.Config, pacer *pacing.Pacer, log logger.Logger) (*Manager, error) {
	ch, err := Lookup(cfg.Channel.Name)
	if err != nil {
		return nil, err
	}
	if cfg.Channel.HomeURL != "" {
		ch.HomeURL = cfg.Channel.HomeURL
	}
	if pacer == nil {
		pacer = pacing.New()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		cfg:     cfg,
		channel: ch,
		pacer:   pacer,
		launch:  LaunchChrome,
		logger:  log.WithField("channel", ch.Name),
	}, nil
}

// WithLauncher replaces how the browser is started
func (m *Manager) WithLauncher(fn LaunchFunc) *Manager {
	m.launch = fn
	return m
}

// Channel returns the resolved channel
func (m *Manager) Channel() Channel {
	return m.channel
}

// Open prepares the working directories, locks the profile, starts the
// browser and makes sure the channel is logged in. The caller must Close
// the returned session.
func (m *Manager) Open(ctx context.Context, creds Credentials) (*Session, error) {
	paths := m.cfg.Paths
	if err := prepareDirs(paths.ProfileDir, paths.DownloadDir, paths.LogDir); err != nil {
		return nil, err
	}

	release, err := lockProfile(paths.ProfileDir)
	if err != nil {
		return nil, err
	}

	driver, err := m.launch(ctx, browser.OptionsFromConfig(m.cfg), m.logger)
	if err != nil {
		return nil, errors.Join(err, release())
	}

	s := &Session{
		driver:   driver,
		actor:    human.New(driver, m.pacer, m.cfg.Pacing, m.cfg.Timeouts.Element, m.logger),
		channel:  m.channel,
		timeouts: m.cfg.Timeouts,
		poll:     m.cfg.Pacing.Poll,
		release:  release,
		logger:   m.logger,
	}

	if err := s.login(ctx, creds); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

// Session is an open, logged-in browser holding the profile lock
type Session struct {
	driver   browser.Driver
	actor    *human.Actor
	channel  Channel
	timeouts config.TimeoutConfig
	poll     pacing.Range
	release  func() error
	logger   logger.Logger

	// Reused is true when the profile was already logged in
	Reused bool

	closeOnce sync.Once
	closeErr  error
}

// Driver returns the browser
func (s *Session) Driver() browser.Driver {
	return s.driver
}

// Actor returns the human-paced interaction helper bound to the browser
func (s *Session) Actor() *human.Actor {
	return s.actor
}

// Close shuts the browser down and releases the profile. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.driver.Close(), s.release())
		s.logger.Info("Browser session closed")
	})
	return s.closeErr
}

func (s *Session) login(ctx context.Context, creds Credentials) error {
	d, t := s.driver, s.timeouts
	if err := d.Navigate(ctx, s.channel.HomeURL); err != nil {
		return err
	}

	if d.Exists(ctx, s.channel.LoggedInXPath, t.LoggedInCheck) {
		s.Reused = true
		s.logger.Info("Profile already logged in")
		return nil
	}

	s.logger.Info("Not logged in, filling the login form")
	if err := d.WaitPresent(ctx, s.channel.UsernameXPath, t.Element); err != nil {
		return err
	}
	if err := d.WaitPresent(ctx, s.channel.PasswordXPath, t.Element); err != nil {
		return err
	}

	if creds.Username != "" {
		if err := s.actor.Settle(ctx); err != nil {
			return err
		}
		if err := s.actor.Type(ctx, s.channel.UsernameXPath, creds.Username); err != nil {
			return err
		}
		if err := s.actor.Type(ctx, s.channel.PasswordXPath, creds.Password); err != nil {
			return err
		}
	}

	s.logger.WarnWithFields("Waiting for the captcha to be solved and the login submitted in the browser", map[string]interface{}{
		"timeout": t.Login.String(),
	})
	if !s.waitFor(ctx, t.Login, func() bool {
		return d.Exists(ctx, s.channel.LoggedInXPath, t.LoggedInCheck)
	}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errs.New(errs.ErrorTypeAuth, "session.login",
			fmt.Sprintf("login to %s not completed within %s", s.channel.Name, t.Login))
	}

	s.logger.Info("Logged in")
	return nil
}

// waitFor polls cond with paced gaps until it holds or timeout passes
func (s *Session) waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			return false
		}
		if err := s.actor.Pacer().Pause(ctx, s.poll); err != nil {
			return false
		}
	}
}

// GotoDatabase walks the portal menu to the database link and waits while
// the operator passes the captcha that guards it. It gives up after
// attempts tries, returning to the portal home between tries.
func (s *Session) GotoDatabase(ctx context.Context, attempts int) error {
	if attempts <= 0 {
		attempts = 3
	}

	var last error
	for try := 1; try <= attempts; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := s.logger.WithField("attempt", try)

		last = s.walkToDatabase(ctx)
		if last == nil {
			log.WarnWithFields("Complete the captcha in the browser", map[string]interface{}{
				"timeout": s.timeouts.Captcha.String(),
			})
			if s.waitFor(ctx, s.timeouts.Captcha, func() bool {
				ok, err := s.driver.SwitchToURL(ctx, DatabaseDomain)
				return err == nil && ok
			}) {
				log.Info("Reached the database")
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			last = errs.Navigation("session.goto_database",
				fmt.Errorf("no %s tab within %s", DatabaseDomain, s.timeouts.Captcha))
		}

		log.WithError(last).Warn("Database not reached, returning to the portal")
		if err := s.driver.Navigate(ctx, s.channel.HomeURL); err != nil {
			last = errors.Join(last, err)
		}
	}
	return fmt.Errorf("gave up reaching the database after %d attempts: %w", attempts, last)
}

func (s *Session) walkToDatabase(ctx context.Context) error {
	current, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if strings.TrimRight(current, "/") != strings.TrimRight(s.channel.HomeURL, "/") {
		if err := s.driver.Navigate(ctx, s.channel.HomeURL); err != nil {
			return err
		}
	}

	if err := s.driver.WaitPresent(ctx, s.channel.LoggedInXPath, s.timeouts.Element); err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, "session.goto_database", err)
	}

	menuPause := pacing.Seconds(2, 5.42, 0.2)
	last := len(s.channel.DatabasePath) - 1
	for i, step := range s.channel.DatabasePath {
		opts := human.ClickOptions{}
		if i < last {
			opts.NoClick = true
			opts.Pause = &menuPause
		}
		if err := s.actor.HoverPauseClick(ctx, step, opts); err != nil {
			return err
		}
	}
	return nil
}
