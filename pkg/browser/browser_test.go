package browser

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.WindowPercentage = 50
	cfg.Paths.ProfileDir = "/tmp/profile"

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 960, opts.Width)
	assert.Equal(t, 540, opts.Height)
	assert.Equal(t, "/tmp/profile", opts.ProfileDir)
	assert.Equal(t, cfg.Paths.DownloadDir, opts.DownloadDir)
}

func TestHoverPoint(t *testing.T) {
	box := &dom.BoxModel{
		Content: dom.Quad{100, 200, 300, 200, 300, 260, 100, 260},
		Width:   200,
		Height:  60,
	}

	x, y := hoverPoint(box, 0)
	assert.Equal(t, 200.0, x)
	assert.Equal(t, 230.0, y)

	x, y = hoverPoint(box, 0.5)
	assert.Equal(t, 250.0, x)
	assert.Equal(t, 245.0, y)

	x, y = hoverPoint(nil, 0.5)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestFakeClickRunsHook(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.Show("//button")
	f.OnClick("//button", func(f *Fake) error {
		f.Show("//dialog")
		return nil
	})

	require.NoError(t, f.Click(ctx, "//button", 0))
	assert.True(t, f.Present("//dialog"))
	assert.True(t, f.Did("click //button"))
}

func TestFakeMissingElement(t *testing.T) {
	err := NewFake().Click(context.Background(), "//nothing", 0)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNavigation))
}

func TestFakeTypingAndDelete(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.Show("//input")
	f.SetValue("//input", "1")

	require.NoError(t, f.SendKeys(ctx, "//input", "23"))
	v, err := f.Value(ctx, "//input")
	require.NoError(t, err)
	assert.Equal(t, "123", v)

	require.NoError(t, f.DoubleClick(ctx, "//input", 0))
	require.NoError(t, f.PressKey(ctx, KeyDelete))
	v, _ = f.Value(ctx, "//input")
	assert.Empty(t, v)
}

func TestFakeFailNext(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.Show("//a")
	f.FailNext("//a", 2)

	assert.Error(t, f.Click(ctx, "//a", 0))
	assert.Error(t, f.Click(ctx, "//a", 0))
	assert.NoError(t, f.Click(ctx, "//a", 0))
}

func TestFakeSwitchToURL(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.OpenTab("https://www.webofscience.com/wos/woscc/basic-search")

	ok, err := f.SwitchToURL(ctx, "webofscience.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, f.URL, "webofscience.com")

	ok, _ = f.SwitchToURL(ctx, "example.org")
	assert.False(t, ok)

	n, _ := f.TabCount(ctx)
	assert.Equal(t, 2, n)
}

func TestFakeTimeoutsLookLikeChrome(t *testing.T) {
	f := NewFake()
	f.Show("//button")
	f.TimeoutNext("//button", 1)
	ctx := context.Background()

	err := f.Click(ctx, "//button", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNavigation))
	assert.NoError(t, f.Click(ctx, "//button", 0), "only the scheduled interaction times out")

	err = f.WaitPresent(ctx, "//missing", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
