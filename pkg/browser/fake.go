package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	errs "wosexport/pkg/errors"
)

// Fake is an in-memory Driver for tests. Elements are XPath strings that are
// either present or not; hooks let a test react to clicks the way a page
// would.
type Fake struct {
	mu sync.Mutex

	URL      string
	Page     string
	Tabs     []string
	Download string
	Closed   bool

	present map[string]bool
	values  map[string]string
	texts   map[string]string
	onClick map[string]func(f *Fake) error
	// fail holds a count of upcoming failures per xpath
	fail    map[string]int
	timeout map[string]int
	focused string

	Actions []string
}

// NewFake returns an empty page at about:blank
func NewFake() *Fake {
	return &Fake{
		URL:     "about:blank",
		Tabs:    []string{"about:blank"},
		present: make(map[string]bool),
		values:  make(map[string]string),
		texts:   make(map[string]string),
		onClick: make(map[string]func(*Fake) error),
		fail:    make(map[string]int),
		timeout: make(map[string]int),
	}
}

// Setup methods below do not lock. Call them before the fake is in use or
// from inside an OnClick hook.

// Show makes the elements present
func (f *Fake) Show(xpaths ...string) {
	for _, x := range xpaths {
		f.present[x] = true
	}
}

// Hide removes elements
func (f *Fake) Hide(xpaths ...string) {
	for _, x := range xpaths {
		delete(f.present, x)
	}
}

// SetText sets the text content of xpath and shows it
func (f *Fake) SetText(xpath, text string) {
	f.present[xpath] = true
	f.texts[xpath] = text
}

// SetValue sets the value of an input
func (f *Fake) SetValue(xpath, value string) {
	f.values[xpath] = value
}

// Peek returns the value of an input
func (f *Fake) Peek(xpath string) string {
	return f.values[xpath]
}

// OnClick registers fn to run whenever xpath is clicked
func (f *Fake) OnClick(xpath string, fn func(f *Fake) error) {
	f.onClick[xpath] = fn
}

// FailNext makes the next n interactions with xpath fail
func (f *Fake) FailNext(xpath string, n int) {
	f.fail[xpath] = n
}

// TimeoutNext makes the next n interactions with xpath run out of time the
// way Chrome does when an element never shows up
func (f *Fake) TimeoutNext(xpath string, n int) {
	f.timeout[xpath] = n
}

// Present reports whether xpath is shown
func (f *Fake) Present(xpath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present[xpath]
}

// Did reports whether an action string was recorded
func (f *Fake) Did(action string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Count returns how often an action string was recorded
func (f *Fake) Count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.Actions {
		if a == action {
			n++
		}
	}
	return n
}

func (f *Fake) record(format string, args ...interface{}) {
	f.Actions = append(f.Actions, fmt.Sprintf(format, args...))
}

// need fails unless xpath is present and not scheduled to fail
func (f *Fake) need(op, xpath string) error {
	if n := f.fail[xpath]; n > 0 {
		f.fail[xpath] = n - 1
		return errs.Navigation(op, fmt.Errorf("injected failure on %s", xpath))
	}
	if n := f.timeout[xpath]; n > 0 {
		f.timeout[xpath] = n - 1
		return errs.Navigation(op, fmt.Errorf("waiting for %s: %w", xpath, context.DeadlineExceeded))
	}
	if !f.present[xpath] {
		return errs.Navigation(op, fmt.Errorf("element not found: %s: %w", xpath, context.DeadlineExceeded))
	}
	return nil
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate %s", url)
	f.URL = url
	if len(f.Tabs) > 0 {
		f.Tabs[0] = url
	}
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, ctx.Err()
}

func (f *Fake) WaitPresent(ctx context.Context, xpath string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.need("browser.wait_present", xpath)
}

func (f *Fake) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error {
	return f.WaitPresent(ctx, xpath, timeout)
}

func (f *Fake) WaitGone(ctx context.Context, xpath string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.present[xpath] {
		return errs.Navigation("browser.wait_gone", fmt.Errorf("element still present: %s: %w", xpath, context.DeadlineExceeded))
	}
	return nil
}

func (f *Fake) Exists(ctx context.Context, xpath string, timeout time.Duration) bool {
	return f.WaitPresent(ctx, xpath, timeout) == nil
}

func (f *Fake) Click(ctx context.Context, xpath string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.need("browser.click", xpath); err != nil {
		return err
	}
	f.record("click %s", xpath)
	f.focused = xpath
	if fn := f.onClick[xpath]; fn != nil {
		return fn(f)
	}
	return nil
}

func (f *Fake) DoubleClick(ctx context.Context, xpath string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.need("browser.double_click", xpath); err != nil {
		return err
	}
	f.record("dblclick %s", xpath)
	f.focused = xpath
	return nil
}

func (f *Fake) Hover(ctx context.Context, xpath string, ratio float64, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.need("browser.hover", xpath); err != nil {
		return err
	}
	f.record("hover %s", xpath)
	return nil
}

func (f *Fake) SendKeys(ctx context.Context, xpath, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.need("browser.send_keys", xpath); err != nil {
		return err
	}
	f.values[xpath] += text
	f.focused = xpath
	return nil
}

// PressKey clears the focused input on Delete and records every key
func (f *Fake) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("key %s", key)
	if key == KeyDelete && f.focused != "" {
		f.values[f.focused] = ""
	}
	return nil
}

func (f *Fake) Value(ctx context.Context, xpath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.need("browser.value", xpath); err != nil {
		return "", err
	}
	return f.values[xpath], ctx.Err()
}

func (f *Fake) Text(ctx context.Context, xpath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.need("browser.text", xpath); err != nil {
		return "", err
	}
	return f.texts[xpath], ctx.Err()
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Page, ctx.Err()
}

// OpenTab adds a tab without focusing it
func (f *Fake) OpenTab(url string) {
	f.Tabs = append(f.Tabs, url)
}

func (f *Fake) SwitchToURL(ctx context.Context, substr string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, url := range f.Tabs {
		if strings.Contains(url, substr) {
			f.URL = url
			f.record("switch %s", url)
			return true, ctx.Err()
		}
	}
	return false, ctx.Err()
}

func (f *Fake) TabCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Tabs), ctx.Err()
}

func (f *Fake) SetDownloadDir(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Download = dir
	return ctx.Err()
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

var _ Driver = (*Fake)(nil)
var _ Driver = (*Chrome)(nil)
