package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp/kb"

	"wosexport/pkg/config"
)

// Keys understood by PressKey
const (
	KeyDelete    = kb.Delete
	KeyHome      = kb.Home
	KeyEnter     = kb.Enter
	KeyArrowUp   = kb.ArrowUp
	KeyArrowDown = kb.ArrowDown
)

// Driver is the browser surface the automation needs. Every selector is an
// XPath expression. Methods taking a timeout wait up to that long for the
// element before failing with a navigation error.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)

	WaitPresent(ctx context.Context, xpath string, timeout time.Duration) error
	WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error
	WaitGone(ctx context.Context, xpath string, timeout time.Duration) error
	// Exists reports whether xpath becomes visible within timeout
	Exists(ctx context.Context, xpath string, timeout time.Duration) bool

	Click(ctx context.Context, xpath string, timeout time.Duration) error
	DoubleClick(ctx context.Context, xpath string, timeout time.Duration) error
	// Hover moves the pointer over xpath, offset from its centre by ratio
	// of the element's half width and half height
	Hover(ctx context.Context, xpath string, ratio float64, timeout time.Duration) error

	SendKeys(ctx context.Context, xpath, text string) error
	// PressKey sends key to whatever element has focus
	PressKey(ctx context.Context, key string) error

	Value(ctx context.Context, xpath string) (string, error)
	Text(ctx context.Context, xpath string) (string, error)
	HTML(ctx context.Context) (string, error)

	// SwitchToURL focuses the first tab whose URL contains substr
	SwitchToURL(ctx context.Context, substr string) (bool, error)
	TabCount(ctx context.Context) (int, error)
	SetDownloadDir(ctx context.Context, dir string) error

	Close() error
}

// Options describes how to launch Chrome
type Options struct {
	ChromePath  string
	ProfileDir  string
	DownloadDir string
	Headless    bool
	Width       int
	Height      int
	UserAgent   string
	Language    string
	// LaunchTimeout bounds browser start-up
	LaunchTimeout time.Duration
}

// OptionsFromConfig derives launch options, sizing the window to the
// configured share of the screen
func OptionsFromConfig(cfg *config.Config) Options {
	pct := cfg.Browser.WindowPercentage
	if pct <= 0 || pct > 100 {
		pct = 100
	}
	return Options{
		ChromePath:    cfg.Browser.ChromePath,
		ProfileDir:    cfg.Paths.ProfileDir,
		DownloadDir:   cfg.Paths.DownloadDir,
		Headless:      cfg.Browser.Headless,
		Width:         cfg.Browser.ScreenWidth * pct / 100,
		Height:        cfg.Browser.ScreenHeight * pct / 100,
		UserAgent:     cfg.Browser.UserAgent,
		Language:      cfg.Browser.Language,
		LaunchTimeout: cfg.Timeouts.Results,
	}
}
