package session

import (
	"fmt"
	"sort"
	"sync"

	errs "wosexport/pkg/errors"
)

// DatabaseDomain identifies a tab that reached the citation database
const DatabaseDomain = "webofscience.com"

// Channel describes an institutional portal that proxies database access
type Channel struct {
	Name    string
	HomeURL string

	// LoggedInXPath appears only once the portal recognises the user
	LoggedInXPath string
	UsernameXPath string
	PasswordXPath string

	// DatabasePath is the menu walk from the portal home to the database
	// link. Every step but the last is hovered without clicking.
	DatabasePath []string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Channel{
		"sunshine": {
			Name:          "sunshine",
			HomeURL:       "http://www.99885.net/",
			LoggedInXPath: `//div[contains(@class, 'login-title') and contains(., '欢迎您')]`,
			UsernameXPath: `//*[@id="user_name"]`,
			PasswordXPath: `//*[@id="password"]`,
			DatabasePath: []string{
				`//a[@class='h-m-n-link' and text()='资源列表']`,
				`//a[@rel='nofollow' and @class='h-s-n-link' and text()='英文数据库']`,
				`//a[text()=' Web of Science']`,
			},
		},
	}
)

// Register adds or replaces a channel
func Register(c Channel) error {
	if c.Name == "" || c.HomeURL == "" || c.LoggedInXPath == "" || len(c.DatabasePath) == 0 {
		return errs.Validation("session.register", "channel %q is incomplete", c.Name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c.Name] = c
	return nil
}

// Lookup returns the named channel
func Lookup(name string) (Channel, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	if !ok {
		return Channel{}, errs.Validation("session.lookup",
			"unknown channel %q (known: %v)", name, namesLocked())
	}
	return c, nil
}

// Names lists registered channels in order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c Channel) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.HomeURL)
}
