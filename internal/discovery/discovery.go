// Package discovery advertises the serving endpoint over mDNS so LAN
// clients can find the server without typing an address. Best-effort: a
// failed registration only costs the advertisement.
package discovery

import (
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_irondrop._tcp"

// Advertiser represents an active mDNS advertisement.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise publishes the file server over mDNS. instance names this
// process; path is the root URL path.
func Advertise(instance, path string, ip net.IP, port int) (*Advertiser, error) {
	if ip == nil {
		return nil, fmt.Errorf("ip is required")
	}

	txt := []string{
		"path=" + path,
		"ip=" + ip.String(),
	}

	srv, err := zeroconf.Register(instance, serviceType, "local.", port, txt, nil)
	if err != nil {
		return nil, err
	}

	return &Advertiser{server: srv}, nil
}

// Close stops advertising.
func (a *Advertiser) Close() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}
