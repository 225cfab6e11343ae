// Package browser drives a Chrome tab on the X web client: it snapshots the
// page for extraction, lists reply composers and types replies into them.
package browser

import "github.com/chromedp/chromedp"

// DefaultUserAgent is a current desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Options returns allocator options for a launched browser. A visible
// browser lets the user sign in to X once; the profile keeps the session.
func Options(visible bool, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !visible),

		// X refuses sessions that advertise navigator.webdriver.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(1280, 900),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if !visible {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}

	return opts
}
