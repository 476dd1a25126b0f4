// Package navigate moves a logged-in browser around the citation database:
// overlays, language, advanced search, sorting and reading the result count.
package navigate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wosexport/pkg/browser"
	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
	"wosexport/pkg/human"
	"wosexport/pkg/logger"
	"wosexport/pkg/pacing"
	"wosexport/pkg/retry"
)

const (
	// AdvancedSearchURL opens the advanced search form directly
	AdvancedSearchURL = "https://www.webofscience.com/wos/woscc/advanced-search"
	// ResultsPath is part of every results page URL
	ResultsPath = "webofscience.com/wos/woscc/summary"
)

// Page elements
const (
	XAdvancedLink  = `//a[@data-ta="advanced-search-link"]`
	XClear         = `//span[contains(@class, "mat-button-wrapper") and text()=" Clear "]`
	XQueryInput    = `//*[@id="advancedSearchInputArea"]`
	XSearch        = `//span[contains(@class, "mat-button-wrapper") and text()=" Search "]`
	XResultTitle   = `//*[contains(@class, "title-link")]`
	XSortBy        = `//span[contains(@class, "label colonMark") and text()="Sort by"]`
	XDateAscending = `//*[@id="date-ascending"]`
	XChinese       = `//*[normalize-space(text())="简体中文"]`
	XEnglish       = `//button[@lang="en"]`
	XClaimRecord   = `//h2[contains(text(), "Continue on to claim your record")]`
	XCloseIcon     = `//mat-icon[contains(@class, 'material-icons') and contains(text(), 'close')]`
)

// Overlays lists the banners and guides that cover the page, in the order
// they are dismissed
var Overlays = []string{
	`//button[contains(@class, 'onetrust-close-btn-handler') and @aria-label='关闭']`,
	`//button[contains(@class, "_pendo-button-primaryButton")]`,
	`//button[contains(@class, "_pendo-button-secondaryButton")]`,
	`//span[contains(@class, "_pendo-close-guide")]`,
	`//*[@id="pendo-close-guide-a5a67841"]`,
	`//*[@id="pendo-close-guide-5600f670"]`,
	XCloseIcon,
}

// resultCountSelector locates the record count in the results header
const resultCountSelector = "h1.search-info-title span.brand-blue"

var (
	quickPause = pacing.Seconds(1.618, 2.42, 0.2)
	shortPause = pacing.Seconds(0.5, 1.5, 1)
)

// Method chooses how the advanced search form is opened
type Method string

const (
	ByClick  Method = "click"
	ByDirect Method = "direct"
)

// Navigator performs page-level moves on the database
type Navigator struct {
	actor    *human.Actor
	driver   browser.Driver
	timeouts config.TimeoutConfig
	attempts int
	logger   logger.Logger
}

// New creates a Navigator
func New(actor *human.Actor, timeouts config.TimeoutConfig, log logger.Logger) *Navigator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Navigator{
		actor:    actor,
		driver:   actor.Driver(),
		timeouts: timeouts,
		attempts: 3,
		logger:   log,
	}
}

func (n *Navigator) retryConfig(name string) *retry.Config {
	return &retry.Config{
		MaxAttempts: n.attempts,
		Backoff:     &retry.PacedBackoff{Pacer: n.actor.Pacer(), Range: n.actor.Pacing().Settle},
		RetryIf: func(err error) bool {
			return err != nil && !errs.IsType(err, errs.ErrorTypeValidation)
		},
		Sleep:  n.actor.Pacer().Wait,
		Logger: n.logger,
		Name:   name,
	}
}

// DismissOverlays closes every overlay that shows up within the overlay
// timeout and reports whether any was closed
func (n *Navigator) DismissOverlays(ctx context.Context) bool {
	closed := 0
	for _, x := range Overlays {
		if ctx.Err() != nil {
			break
		}
		if !n.driver.Exists(ctx, x, n.timeouts.Overlay) {
			continue
		}
		err := n.actor.HoverPauseClick(ctx, x, human.ClickOptions{
			Pause:   &quickPause,
			Timeout: n.timeouts.Overlay,
		})
		if err != nil {
			n.logger.WithError(err).DebugWithFields("Overlay did not close", map[string]interface{}{"xpath": x})
			continue
		}
		closed++
	}
	if closed > 0 {
		n.logger.InfoWithFields("Dismissed overlays", map[string]interface{}{"count": closed})
	}
	return closed > 0
}

// Inspect handles the "claim your record" prompt and reports whether it was
// present
func (n *Navigator) Inspect(ctx context.Context) bool {
	if !n.driver.Exists(ctx, XClaimRecord, n.timeouts.Overlay) {
		return false
	}
	n.logger.Info("Claim-your-record prompt found")
	_ = n.actor.HoverPauseClick(ctx, XCloseIcon, human.ClickOptions{
		NoClick: true,
		Pause:   &shortPause,
		Timeout: n.timeouts.Overlay,
	})
	n.DismissOverlays(ctx)
	return true
}

// SwitchEnglish changes the interface language from Chinese to English
func (n *Navigator) SwitchEnglish(ctx context.Context) error {
	if ok, _ := n.OnDatabase(ctx); !ok {
		if _, err := n.driver.SwitchToURL(ctx, "webofscience.com"); err != nil {
			return err
		}
	}

	_, err := retry.Do(ctx, n.retryConfig("switch_english"), func(ctx context.Context, _ int) error {
		if err := n.actor.Think(ctx); err != nil {
			return err
		}
		opts := human.ClickOptions{Pause: &shortPause}
		if err := n.actor.HoverPauseClick(ctx, XChinese, opts); err != nil {
			return err
		}
		return n.actor.HoverPauseClick(ctx, XEnglish, opts)
	})
	if err != nil {
		return fmt.Errorf("failed to switch the interface to English: %w", err)
	}
	n.logger.Info("Interface switched to English")
	return nil
}

// GotoAdvancedSearch opens the advanced search form
func (n *Navigator) GotoAdvancedSearch(ctx context.Context, method Method) error {
	var op retry.Operation
	switch method {
	case ByClick:
		op = func(ctx context.Context, _ int) error {
			return n.actor.HoverPauseClick(ctx, XAdvancedLink, human.ClickOptions{Pause: &quickPause})
		}
	case ByDirect:
		op = func(ctx context.Context, _ int) error {
			return n.driver.Navigate(ctx, AdvancedSearchURL)
		}
	default:
		return errs.Validation("navigate.advanced_search", "unknown method %q, use %q or %q", method, ByClick, ByDirect)
	}

	if _, err := retry.Do(ctx, n.retryConfig("goto_advanced_search"), op); err != nil {
		return fmt.Errorf("failed to open advanced search: %w", err)
	}
	return nil
}

// AdvancedSearch clears the form, enters q, submits and waits for results
func (n *Navigator) AdvancedSearch(ctx context.Context, q string) error {
	if strings.TrimSpace(q) == "" {
		return errs.Validation("navigate.search", "empty query")
	}

	_, err := retry.Do(ctx, n.retryConfig("advanced_search"), func(ctx context.Context, _ int) error {
		if err := n.driver.WaitPresent(ctx, XClear, n.timeouts.Element); err != nil {
			return err
		}
		if err := n.actor.HoverPauseClick(ctx, XClear, human.ClickOptions{Pause: &quickPause}); err != nil {
			return err
		}
		if err := n.driver.SendKeys(ctx, XQueryInput, q); err != nil {
			return err
		}
		if err := n.actor.HoverPauseClick(ctx, XSearch, human.ClickOptions{Pause: &quickPause}); err != nil {
			return err
		}
		return n.driver.WaitPresent(ctx, XResultTitle, n.timeouts.Results)
	})
	if err != nil {
		return fmt.Errorf("advanced search failed: %w", err)
	}
	n.logger.InfoWithFields("Search submitted", map[string]interface{}{"query": q})
	return nil
}

// SortOldestFirst orders results by date ascending, so records appended
// later do not shift earlier ranges
func (n *Navigator) SortOldestFirst(ctx context.Context) error {
	opts := human.ClickOptions{Pause: &quickPause}
	if err := n.actor.HoverPauseClick(ctx, XSortBy, opts); err != nil {
		return fmt.Errorf("failed to open sort menu: %w", err)
	}
	if err := n.actor.HoverPauseClick(ctx, XDateAscending, opts); err != nil {
		return fmt.Errorf("failed to sort oldest first: %w", err)
	}
	return nil
}

// ResultCount reads the number of records matching the current search
func (n *Navigator) ResultCount(ctx context.Context) (int, error) {
	html, err := n.driver.HTML(ctx)
	if err != nil {
		return 0, err
	}
	return ParseResultCount(html)
}

// ParseResultCount extracts the result count from a results page
func ParseResultCount(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("failed to parse results page: %w", err)
	}

	sel := doc.Find(resultCountSelector).First()
	if sel.Length() == 0 {
		return 0, errs.Navigation("navigate.result_count", fmt.Errorf("result count not found on page"))
	}

	text := strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(sel.Text()))
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, errs.Navigation("navigate.result_count", fmt.Errorf("unreadable count %q: %w", sel.Text(), err))
	}
	return count, nil
}

// OnDatabase reports whether the focused tab is on the database
func (n *Navigator) OnDatabase(ctx context.Context) (bool, error) {
	url, err := n.driver.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(url, "webofscience.com"), nil
}

// OnResultsPage reports whether the focused tab shows search results
func (n *Navigator) OnResultsPage(ctx context.Context) (bool, string, error) {
	url, err := n.driver.CurrentURL(ctx)
	if err != nil {
		return false, "", err
	}
	return strings.Contains(url, ResultsPath), url, nil
}

// EnsureResults returns the results page URL, running q through advanced
// search first when the browser is elsewhere
func (n *Navigator) EnsureResults(ctx context.Context, q string) (string, error) {
	ok, url, err := n.OnResultsPage(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		n.logger.Debug("Already on the results page")
		return url, nil
	}

	n.logger.Info("Not on the results page, searching again")
	if err := n.GotoAdvancedSearch(ctx, ByDirect); err != nil {
		return "", err
	}
	if err := n.AdvancedSearch(ctx, q); err != nil {
		return "", err
	}
	if err := n.actor.Scroll(ctx, human.Down, 9); err != nil {
		return "", err
	}
	_, url, err = n.OnResultsPage(ctx)
	return url, err
}

// Recover clears whatever may block the page and returns to resultsURL
func (n *Navigator) Recover(ctx context.Context, resultsURL string) error {
	n.Inspect(ctx)
	n.DismissOverlays(ctx)

	current, err := n.driver.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if resultsURL != "" && current != resultsURL {
		n.logger.InfoWithFields("Returning to the results page", map[string]interface{}{"url": resultsURL})
		if err := n.driver.Navigate(ctx, resultsURL); err != nil {
			return err
		}
		return n.actor.Settle(ctx)
	}
	return nil
}
