// Package browser wraps Chrome behind a small XPath-based Driver interface.
//
// Chrome talks to a locally launched browser through chromedp, keeping a
// persistent profile directory so institutional logins survive restarts.
// Fake implements the same interface in memory for tests of the packages
// that sit on top of a browser.
package browser
