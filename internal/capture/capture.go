package capture

import (
	"context"
	"time"
)

// Request describes one page to render.
type Request struct {
	URL    string
	Device Device

	// FullPage captures the whole scrollable page instead of the viewport.
	FullPage bool
	// Delay waits after the network settles, e.g. for web fonts.
	Delay time.Duration
	// Mask paints over elements matching these selectors, e.g. clocks or avatars.
	Mask []string
}

// Capturer renders a page off-screen the way the request's device would display it
// and returns a PNG.
type Capturer interface {
	Capture(ctx context.Context, r Request) ([]byte, error)
}
