package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	apperrors "github.com/gmsas95/doclens/internal/errors"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ChromeConfig holds headless Chrome settings
type ChromeConfig struct {
	ExecutablePath string
	// Timeout bounds one render; zero means no limit
	Timeout time.Duration
}

// ChromeRenderer prints HTML to PDF with a headless Chrome started per call
type ChromeRenderer struct {
	config ChromeConfig
}

// NewChromeRenderer creates a chromedp-backed renderer
func NewChromeRenderer(cfg ChromeConfig) *ChromeRenderer {
	return &ChromeRenderer{config: cfg}
}

func (r *ChromeRenderer) RenderPDF(ctx context.Context, markup string) ([]byte, error) {
	ctx, cancel := r.getContext(ctx)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, markup).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print failed: %w", err)
	}
	return pdf, nil
}

func (r *ChromeRenderer) getContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if r.config.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecutablePath))
	}

	var timeoutCancel context.CancelFunc = func() {}
	if r.config.Timeout > 0 {
		ctx, timeoutCancel = context.WithTimeout(ctx, r.config.Timeout)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		taskCancel()
		allocCancel()
		timeoutCancel()
	}
	return taskCtx, cancel
}

// BreakerConfig holds circuit breaker settings for a renderer
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerRenderer fails fast while the wrapped renderer keeps failing, so a
// missing or crashing Chrome does not cost every request a browser launch.
type BreakerRenderer struct {
	next    Renderer
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewBreakerRenderer wraps next with a circuit breaker
func NewBreakerRenderer(next Renderer, cfg BreakerConfig, logger *zap.Logger) *BreakerRenderer {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:    "pdf-renderer",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("renderer circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerRenderer{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (b *BreakerRenderer) RenderPDF(ctx context.Context, markup string) ([]byte, error) {
	data, err := b.breaker.Execute(func() ([]byte, error) {
		return b.next.RenderPDF(ctx, markup)
	})
	if err != nil {
		return nil, apperrors.ErrRender.WithCause(err)
	}
	return data, nil
}

// State reports the breaker state
func (b *BreakerRenderer) State() gobreaker.State {
	return b.breaker.State()
}
