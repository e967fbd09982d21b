package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/partscout/internal/render"
)

func TestNewLimiterValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	r, err := New(Config{MaxParallel: 2}, nil)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, cap(r.limiter))
	require.Equal(t, "chromedp", r.Name())
}

func TestTimeoutDefaults(t *testing.T) {
	t.Parallel()

	r := &Renderer{}
	require.Equal(t, defaultNavigationTimeout, r.navTimeout())
	require.Equal(t, defaultWaitTimeout, r.waitTimeout())
	require.Equal(t, defaultScrollPause, r.scrollPause())
	require.Equal(t, defaultSettleDelay, r.settleDelay())

	r.cfg = Config{NavigationTimeout: time.Second, WaitTimeout: 2 * time.Second, ScrollPause: time.Millisecond}
	require.Equal(t, time.Second, r.navTimeout())
	require.Equal(t, 2*time.Second, r.waitTimeout())
	require.Equal(t, time.Millisecond, r.scrollPause())
}

func TestAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	r := &Renderer{limiter: make(chan struct{}, 1)}
	require.NoError(t, r.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.acquire(ctx), context.Canceled)

	r.release()
	require.NoError(t, r.acquire(context.Background()))
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	got := toNetworkHeaders(http.Header{"X-One": {"a"}, "X-Many": {"a", "b"}, "X-None": {}})
	require.Equal(t, "a", got["X-One"])
	require.Equal(t, []string{"a", "b"}, got["X-Many"])
	_, ok := got["X-None"]
	require.False(t, ok)
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  203,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 500, URL: "https://ads.example.com/frame"},
	})
	meta.captureEvent(&network.EventResponseReceived{Type: network.ResourceTypeImage, Response: &network.Response{Status: 404}})

	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 203, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://example.com/rendered", url)

	status, _, url = newResponseMeta().snapshotWithFallbacks("https://req", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://req", url)
}

func TestRenderAfterClose(t *testing.T) {
	t.Parallel()

	r, err := New(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)
	r.Close()

	_, err = r.Render(context.Background(), render.Request{URL: "https://example.com"})
	require.ErrorIs(t, err, render.ErrRendererDisabled)
}
