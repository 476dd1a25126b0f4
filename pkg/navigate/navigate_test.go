package navigate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wosexport/pkg/browser"
	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
	"wosexport/pkg/human"
	"wosexport/pkg/logger"
	"wosexport/pkg/pacing"
)

const resultsURL = "https://www.webofscience.com/wos/woscc/summary/abc-123/relevance/1"

const resultsPage = `<html><body>
<h1 class="search-info-title font-size-20 ng-star-inserted">
  <span class="brand-blue">12,345</span> results from Web of Science Core Collection
</h1></body></html>`

func newNavigator(t *testing.T) (*Navigator, *browser.Fake) {
	t.Helper()
	cfg := config.DefaultConfig()
	f := browser.NewFake()
	actor := human.New(f, pacing.Instant(), cfg.Pacing, time.Second, nil)
	return New(actor, cfg.Timeouts, logger.NewTestLogger()), f
}

func TestParseResultCount(t *testing.T) {
	n, err := ParseResultCount(resultsPage)
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
}

func TestParseResultCountMissing(t *testing.T) {
	_, err := ParseResultCount("<html><body><h1>No results</h1></body></html>")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNavigation))

	_, err = ParseResultCount(`<h1 class="search-info-title"><span class="brand-blue">many</span></h1>`)
	assert.Error(t, err)
}

func TestResultCountFromBrowser(t *testing.T) {
	nav, f := newNavigator(t)
	f.Page = resultsPage

	n, err := nav.ResultCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
}

func TestDismissOverlays(t *testing.T) {
	nav, f := newNavigator(t)
	assert.False(t, nav.DismissOverlays(context.Background()))

	f.Show(Overlays[1], Overlays[3])
	assert.True(t, nav.DismissOverlays(context.Background()))
	assert.True(t, f.Did("click "+Overlays[1]))
	assert.True(t, f.Did("click "+Overlays[3]))
	assert.False(t, f.Did("click "+Overlays[0]))
}

func TestInspect(t *testing.T) {
	nav, f := newNavigator(t)
	assert.False(t, nav.Inspect(context.Background()))

	f.Show(XClaimRecord, XCloseIcon)
	f.OnClick(XCloseIcon, func(f *browser.Fake) error {
		f.Hide(XClaimRecord, XCloseIcon)
		return nil
	})
	assert.True(t, nav.Inspect(context.Background()))
	assert.False(t, f.Present(XClaimRecord))
}

func TestAdvancedSearchRetries(t *testing.T) {
	nav, f := newNavigator(t)
	f.Show(XClear, XQueryInput, XSearch)
	f.OnClick(XSearch, func(f *browser.Fake) error {
		f.Show(XResultTitle)
		f.URL = resultsURL
		return nil
	})
	f.FailNext(XClear, 1)

	require.NoError(t, nav.AdvancedSearch(context.Background(), "SO=(Water Research)"))
	v, _ := f.Value(context.Background(), XQueryInput)
	assert.Contains(t, v, "SO=(Water Research)")
	assert.Equal(t, 1, f.Count("click "+XSearch))
}

func TestAdvancedSearchEmptyQuery(t *testing.T) {
	nav, _ := newNavigator(t)
	err := nav.AdvancedSearch(context.Background(), "  ")
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))
}

func TestGotoAdvancedSearch(t *testing.T) {
	nav, f := newNavigator(t)

	require.NoError(t, nav.GotoAdvancedSearch(context.Background(), ByDirect))
	assert.Equal(t, AdvancedSearchURL, f.URL)

	f.Show(XAdvancedLink)
	require.NoError(t, nav.GotoAdvancedSearch(context.Background(), ByClick))
	assert.True(t, f.Did("click "+XAdvancedLink))

	err := nav.GotoAdvancedSearch(context.Background(), Method("teleport"))
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))
}

func TestSortOldestFirst(t *testing.T) {
	nav, f := newNavigator(t)
	f.Show(XSortBy)
	f.OnClick(XSortBy, func(f *browser.Fake) error {
		f.Show(XDateAscending)
		return nil
	})

	require.NoError(t, nav.SortOldestFirst(context.Background()))
	assert.True(t, f.Did("click "+XDateAscending))
}

func TestSwitchEnglish(t *testing.T) {
	nav, f := newNavigator(t)
	f.OpenTab("https://www.webofscience.com/wos/woscc/basic-search")
	f.Show(XChinese)
	f.OnClick(XChinese, func(f *browser.Fake) error {
		f.Show(XEnglish)
		return nil
	})

	require.NoError(t, nav.SwitchEnglish(context.Background()))
	assert.True(t, f.Did("click "+XEnglish))
	assert.Contains(t, f.URL, "webofscience.com")
}

func TestEnsureResultsSearchesWhenElsewhere(t *testing.T) {
	nav, f := newNavigator(t)
	f.Show(XClear, XQueryInput, XSearch)
	f.OnClick(XSearch, func(f *browser.Fake) error {
		f.Show(XResultTitle)
		f.URL = resultsURL
		return nil
	})

	url, err := nav.EnsureResults(context.Background(), "SO=(Water Research)")
	require.NoError(t, err)
	assert.Equal(t, resultsURL, url)
	assert.True(t, f.Did("navigate "+AdvancedSearchURL))
	assert.Equal(t, 9, f.Count("key "+browser.KeyArrowDown))

	// Second call is a no-op
	before := len(f.Actions)
	url, err = nav.EnsureResults(context.Background(), "SO=(Water Research)")
	require.NoError(t, err)
	assert.Equal(t, resultsURL, url)
	assert.Len(t, f.Actions, before)
}

func TestRecoverReturnsToResults(t *testing.T) {
	nav, f := newNavigator(t)
	require.NoError(t, f.Navigate(context.Background(), "https://www.webofscience.com/wos/woscc/full-record/X"))

	require.NoError(t, nav.Recover(context.Background(), resultsURL))
	assert.Equal(t, resultsURL, f.URL)
}
