package oauthclient

import "github.com/pkg/browser"

// SystemBrowserOpener implements domain.URLOpener by shelling out to the
// OS's default browser via github.com/pkg/browser, replacing the teacher's
// hand-rolled per-OS exec.Command in pkce.go's OpenBrowser.
type SystemBrowserOpener struct{}

func (SystemBrowserOpener) Open(url string) error {
	return browser.OpenURL(url)
}
