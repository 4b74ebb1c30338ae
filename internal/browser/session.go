// Package browser drives a headless Chrome instance to load a page and tag
// the constructs the capture pipeline reconstructs later: nested frames get
// a correlation uuid, open shadow roots are serialized onto their hosts.
package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"pagevault/capture"
)

// Options tunes one page load.
type Options struct {
	Timeout       time.Duration
	WaitSelector  string
	WaitAfterLoad time.Duration
	UserAgent     string
	Headers       map[string]string
}

// Result is a loaded page ready for capture.
type Result struct {
	SessionID string
	URL       string
	HTML      string
	Frames    []capture.FrameCapture
}

// Session owns a browser allocator reused across page loads.
type Session struct {
	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
}

// New starts a headless allocator.
func New(logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Session{allocator: allocCtx, cancel: cancel, logger: logger}
}

// Close tears down the allocator.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// prepScript runs in the loaded page before serialization. It tags every
// reachable same-origin iframe with a correlation uuid and returns the
// nested documents' markup, then records open shadow roots onto their hosts.
const prepScript = `(() => {
const frames = [];
document.querySelectorAll("iframe").forEach((f) => {
	try {
		const d = f.contentDocument;
		if (!d || !d.documentElement) return;
		const id = crypto.randomUUID();
		f.setAttribute("data-frame-uuid", id);
		frames.push({uuid: id, html: d.documentElement.outerHTML});
	} catch (e) {}
});
const tagShadow = (root) => {
	root.querySelectorAll("*").forEach((el) => {
		if (el.shadowRoot) {
			tagShadow(el.shadowRoot);
			el.setAttribute("data-shadow-dom", el.shadowRoot.innerHTML);
		}
	});
};
tagShadow(document);
return frames;
})()`

type frameInfo struct {
	UUID string `json:"uuid"`
	HTML string `json:"html"`
}

// Load navigates to target, waits for readiness, tags frames and shadow
// roots, and returns the serialized page.
func (s *Session) Load(ctx context.Context, target string, opt Options) (*Result, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("browser load: empty target url")
	}
	taskCtx, cancelBrowser := chromedp.NewContext(s.allocator)
	defer cancelBrowser()

	if ctx != nil {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithCancel(taskCtx)
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-taskCtx.Done():
			}
		}()
		defer cancel()
	}
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	taskCtx, cancel = context.WithTimeout(taskCtx, timeout)
	defer cancel()

	actions := []chromedp.Action{network.Enable()}
	if ua := strings.TrimSpace(opt.UserAgent); ua != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(ua).Do(ctx)
		}))
	}
	if len(opt.Headers) > 0 {
		extra := network.Headers{}
		for k, v := range opt.Headers {
			extra[k] = v
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(extra).Do(ctx)
		}))
	}
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if sel := strings.TrimSpace(opt.WaitSelector); sel != "" {
		actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	if opt.WaitAfterLoad > 0 {
		actions = append(actions, chromedp.Sleep(opt.WaitAfterLoad))
	}

	var frames []frameInfo
	var finalURL, htmlContent string
	actions = append(actions,
		chromedp.Evaluate(prepScript, &frames),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, err
	}
	if finalURL == "" {
		finalURL = target
	}

	res := &Result{
		SessionID: uuid.NewString(),
		URL:       finalURL,
		HTML:      htmlContent,
	}
	for _, f := range frames {
		if f.UUID == "" || f.HTML == "" {
			continue
		}
		res.Frames = append(res.Frames, capture.FrameCapture{UUID: f.UUID, HTML: f.HTML})
	}
	s.logger.Printf("LOAD %s frames=%d bytes=%d", finalURL, len(res.Frames), len(htmlContent))
	return res, nil
}
