package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PlaywrightConfig struct {
	Timeout time.Duration
	// MaskColor fills masked elements, any CSS color.
	MaskColor string

	Headless                  bool
	ChromeDevtoolsProtocolURL string
}

func DefaultPlaywrightConfig() PlaywrightConfig {
	return PlaywrightConfig{
		Timeout:   30 * time.Second,
		MaskColor: "#FF00FF",
		Headless:  true,
	}
}

type playwrightCapturer struct {
	config PlaywrightConfig
}

func NewPlaywrightCapturer(ctx context.Context, p PlaywrightConfig) (Capturer, error) {
	return &playwrightCapturer{
		config: p,
	}, nil
}

func (c *playwrightCapturer) Capture(ctx context.Context, r Request) ([]byte, error) {
	p, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	defer p.Stop()

	var browser playwright.Browser

	if c.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(c.config.Headless),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		defer browser.Close()
	} else {
		browser, err = p.Chromium.ConnectOverCDP(c.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to browser via CDP at %s: %w", c.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	browserContext, err := browser.NewContext(contextOptions(r.Device))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context for %s: %w", r.Device, err)
	}
	defer browserContext.Close()

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	if _, err := page.Goto(r.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(c.config.Timeout.Milliseconds())),
	}); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", r.URL, err)
	}

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	screenshot, err := page.Screenshot(c.screenshotOptions(page, r))
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}

	return screenshot, nil
}

func contextOptions(device Device) playwright.BrowserNewContextOptions {
	colorScheme := playwright.ColorSchemeLight
	if device.Style == StyleDark {
		colorScheme = playwright.ColorSchemeDark
	}

	return playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  device.Width,
			Height: device.Height,
		},
		DeviceScaleFactor: playwright.Float(device.Scale),
		IsMobile:          playwright.Bool(device.Mobile),
		HasTouch:          playwright.Bool(device.Mobile),
		ColorScheme:       colorScheme,
		ReducedMotion:     playwright.ReducedMotionReduce,
	}
}

func (c *playwrightCapturer) screenshotOptions(page playwright.Page, r Request) playwright.PageScreenshotOptions {
	options := playwright.PageScreenshotOptions{
		FullPage:   playwright.Bool(r.FullPage),
		Type:       playwright.ScreenshotTypePng,
		Animations: playwright.ScreenshotAnimationsDisabled,
		Scale:      playwright.ScreenshotScaleDevice,
	}
	if len(r.Mask) == 0 {
		return options
	}

	options.Mask = make([]playwright.Locator, 0, len(r.Mask))
	for _, selector := range r.Mask {
		options.Mask = append(options.Mask, page.Locator(selector))
	}
	if c.config.MaskColor != "" {
		options.MaskColor = playwright.String(c.config.MaskColor)
	}
	return options
}
