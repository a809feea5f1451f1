package minutodash

import (
	"github.com/Keksclan/minutodash/feeds"
	"github.com/Keksclan/minutodash/fetch"
)

// DefaultOptions returns the options used in production: the public relay
// for NVD and the default status pages.
func DefaultOptions() []Option {
	return []Option{
		WithRelayURL(fetch.DefaultRelayURL),
		WithNVDViaRelay(true),
		WithServices(feeds.DefaultServices()),
	}
}
