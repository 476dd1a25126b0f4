package human

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wosexport/pkg/browser"
	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
	"wosexport/pkg/pacing"
)

const field = `//input[@name="markFrom"]`

type pauses struct {
	total time.Duration
	count int
}

func newActor(t *testing.T) (*Actor, *browser.Fake, *pauses) {
	t.Helper()
	p := &pauses{}
	pacer := pacing.New(pacing.WithSeed(7), pacing.WithSleeper(func(ctx context.Context, d time.Duration) error {
		p.total += d
		p.count++
		return ctx.Err()
	}))
	f := browser.NewFake()
	return New(f, pacer, config.DefaultConfig().Pacing, time.Second, nil), f, p
}

func TestTypeOneCharacterAtATime(t *testing.T) {
	a, f, p := newActor(t)
	f.Show(field)

	require.NoError(t, a.Type(context.Background(), field, "501"))

	v, _ := f.Value(context.Background(), field)
	assert.Equal(t, "501", v)
	assert.Equal(t, 3, p.count, "one keystroke pause per character")
	assert.GreaterOrEqual(t, p.total, 3*a.Pacing().Keystroke.Min)
}

func TestClearGesture(t *testing.T) {
	a, f, p := newActor(t)
	f.Show(field)
	f.SetValue(field, "1")

	require.NoError(t, a.Clear(context.Background(), field))

	v, _ := f.Value(context.Background(), field)
	assert.Empty(t, v)
	assert.Equal(t, []string{"hover " + field, "dblclick " + field, "key " + browser.KeyDelete}, f.Actions)
	assert.Equal(t, 2, p.count)
}

func TestReplaceVerifies(t *testing.T) {
	a, f, _ := newActor(t)
	f.Show(field)
	f.SetValue(field, "1")

	require.NoError(t, a.Replace(context.Background(), field, "1000"))
	v, _ := f.Value(context.Background(), field)
	assert.Equal(t, "1000", v)
}

func TestVerifyValueMismatch(t *testing.T) {
	a, f, _ := newActor(t)
	f.Show(field)
	f.SetValue(field, "50")

	err := a.VerifyValue(context.Background(), field, "500")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))
}

func TestHoverPauseClickRetriesWithRecovery(t *testing.T) {
	a, f, _ := newActor(t)
	const button = `//button[@id="export"]`
	f.Show(button)
	f.FailNext(button, 2)

	recovered := 0
	err := a.HoverPauseClick(context.Background(), button, ClickOptions{
		Retries: 2,
		OnRetry: func(ctx context.Context) error {
			recovered++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
	assert.True(t, f.Did("click "+button))
}

func TestHoverPauseClickGivesUp(t *testing.T) {
	a, _, _ := newActor(t)

	err := a.HoverPauseClick(context.Background(), "//missing", ClickOptions{Retries: 1})
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNavigation))
	assert.Contains(t, err.Error(), "2 attempt(s)")
}

func TestHoverWithoutClick(t *testing.T) {
	a, f, _ := newActor(t)
	f.Show("//menu")

	require.NoError(t, a.HoverPauseClick(context.Background(), "//menu", ClickOptions{NoClick: true}))
	assert.True(t, f.Did("hover //menu"))
	assert.False(t, f.Did("click //menu"))
}

func TestScroll(t *testing.T) {
	a, f, p := newActor(t)

	require.NoError(t, a.Scroll(context.Background(), Down, 4))
	assert.Equal(t, 4, f.Count("key "+browser.KeyArrowDown))
	assert.Equal(t, 4, p.count)

	require.NoError(t, a.ScrollToTop(context.Background()))
	assert.True(t, f.Did("key " + browser.KeyHome))
}

func TestCancelledContextStopsTyping(t *testing.T) {
	a, f, _ := newActor(t)
	f.Show(field)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, a.Type(ctx, field, "12"), context.Canceled)
}
