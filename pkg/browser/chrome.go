package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/logger"
)

// Chrome drives a local Chrome through the DevTools protocol
type Chrome struct {
	mu          sync.Mutex
	allocCancel context.CancelFunc
	root        context.Context
	rootCancel  context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	tabID       target.ID
	logger      logger.Logger
}

// Launch starts Chrome with a persistent profile and returns a driver
// focused on its first tab
func Launch(ctx context.Context, opts Options, log logger.Logger) (*Chrome, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserDataDir(opts.ProfileDir),
	)
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Language != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Language))
	}

	// The browser outlives ctx; Close tears it down
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	root, rootCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		allocCancel: allocCancel,
		root:        root,
		rootCancel:  rootCancel,
		tab:         root,
		tabCancel:   func() {},
		logger:      log,
	}

	timeout := opts.LaunchTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	runCtx, cancel := c.scope(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate("about:blank")); err != nil {
		c.Close()
		return nil, errs.Wrap(errs.ErrorTypeBrowser, "browser.launch", err)
	}
	if t := chromedp.FromContext(root).Target; t != nil {
		c.tabID = t.TargetID
	}

	if opts.DownloadDir != "" {
		if err := c.SetDownloadDir(ctx, opts.DownloadDir); err != nil {
			c.Close()
			return nil, err
		}
	}

	log.InfoWithFields("Browser launched", map[string]interface{}{
		"profile":  opts.ProfileDir,
		"headless": opts.Headless,
		"window":   fmt.Sprintf("%dx%d", opts.Width, opts.Height),
	})
	return c, nil
}

// scope derives a run context from the focused tab that also ends when ctx
// does or the timeout passes
func (c *Chrome) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	c.mu.Lock()
	tab := c.tab
	c.mu.Unlock()

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(tab, timeout)
	} else {
		runCtx, cancel = context.WithCancel(tab)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (c *Chrome) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := c.scope(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.Navigation(op, err)
	}
	return nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, "browser.navigate", 0,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, "browser.location", 0, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) WaitPresent(ctx context.Context, xpath string, timeout time.Duration) error {
	return c.run(ctx, "browser.wait_present "+xpath, timeout, chromedp.WaitReady(xpath, chromedp.BySearch))
}

func (c *Chrome) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error {
	return c.run(ctx, "browser.wait_visible "+xpath, timeout, chromedp.WaitVisible(xpath, chromedp.BySearch))
}

func (c *Chrome) WaitGone(ctx context.Context, xpath string, timeout time.Duration) error {
	return c.run(ctx, "browser.wait_gone "+xpath, timeout, chromedp.WaitNotPresent(xpath, chromedp.BySearch))
}

func (c *Chrome) Exists(ctx context.Context, xpath string, timeout time.Duration) bool {
	return c.WaitVisible(ctx, xpath, timeout) == nil
}

func (c *Chrome) Click(ctx context.Context, xpath string, timeout time.Duration) error {
	return c.run(ctx, "browser.click "+xpath, timeout, chromedp.Click(xpath, chromedp.BySearch, chromedp.NodeVisible))
}

func (c *Chrome) DoubleClick(ctx context.Context, xpath string, timeout time.Duration) error {
	return c.run(ctx, "browser.double_click "+xpath, timeout, chromedp.DoubleClick(xpath, chromedp.BySearch, chromedp.NodeVisible))
}

func (c *Chrome) Hover(ctx context.Context, xpath string, ratio float64, timeout time.Duration) error {
	var box *dom.BoxModel
	return c.run(ctx, "browser.hover "+xpath, timeout,
		chromedp.WaitReady(xpath, chromedp.BySearch),
		chromedp.ScrollIntoView(xpath, chromedp.BySearch),
		chromedp.Dimensions(xpath, &box, chromedp.BySearch),
		chromedp.ActionFunc(func(ctx context.Context) error {
			x, y := hoverPoint(box, ratio)
			return chromedp.MouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
}

// hoverPoint returns the content-box centre shifted by ratio of the half
// extents
func hoverPoint(box *dom.BoxModel, ratio float64) (float64, float64) {
	if box == nil || len(box.Content) < 8 {
		return 0, 0
	}
	q := box.Content
	cx := (q[0] + q[2] + q[4] + q[6]) / 4
	cy := (q[1] + q[3] + q[5] + q[7]) / 4
	return cx + float64(box.Width)/2*ratio, cy + float64(box.Height)/2*ratio
}

func (c *Chrome) SendKeys(ctx context.Context, xpath, text string) error {
	return c.run(ctx, "browser.send_keys "+xpath, 0, chromedp.SendKeys(xpath, text, chromedp.BySearch))
}

func (c *Chrome) PressKey(ctx context.Context, key string) error {
	return c.run(ctx, "browser.key", 0, chromedp.KeyEvent(key))
}

func (c *Chrome) Value(ctx context.Context, xpath string) (string, error) {
	var v string
	err := c.run(ctx, "browser.value "+xpath, 0, chromedp.Value(xpath, &v, chromedp.BySearch))
	return v, err
}

func (c *Chrome) Text(ctx context.Context, xpath string) (string, error) {
	var v string
	err := c.run(ctx, "browser.text "+xpath, 0, chromedp.Text(xpath, &v, chromedp.BySearch))
	return v, err
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, "browser.html", 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (c *Chrome) pages(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := c.scope(ctx, 0)
	defer cancel()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeBrowser, "browser.targets", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if info.Type == "page" {
			out = append(out, info)
		}
	}
	return out, nil
}

func (c *Chrome) TabCount(ctx context.Context) (int, error) {
	pages, err := c.pages(ctx)
	return len(pages), err
}

func (c *Chrome) SwitchToURL(ctx context.Context, substr string) (bool, error) {
	pages, err := c.pages(ctx)
	if err != nil {
		return false, err
	}

	for _, info := range pages {
		if !strings.Contains(info.URL, substr) {
			continue
		}

		c.mu.Lock()
		if info.TargetID == c.tabID {
			c.mu.Unlock()
			return true, nil
		}
		tab, cancel := chromedp.NewContext(c.root, chromedp.WithTargetID(info.TargetID))
		prevCancel := c.tabCancel
		c.tab, c.tabCancel, c.tabID = tab, cancel, info.TargetID
		c.mu.Unlock()
		prevCancel()

		if err := c.run(ctx, "browser.activate", 0, target.ActivateTarget(info.TargetID)); err != nil {
			return false, err
		}
		c.logger.DebugWithFields("Switched tab", map[string]interface{}{"url": info.URL})
		return true, nil
	}
	return false, nil
}

func (c *Chrome) SetDownloadDir(ctx context.Context, dir string) error {
	runCtx, cancel := c.scope(ctx, 0)
	defer cancel()

	err := chromedp.Run(runCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, "browser.download_dir", err)
	}
	return nil
}

// Close shuts the browser down and releases the profile
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tabCancel()
	err := chromedp.Cancel(c.root)
	c.rootCancel()
	c.allocCancel()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, "browser.close", err)
	}
	return nil
}
