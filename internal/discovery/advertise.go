// ABOUTME: mDNS advertisement for dubbing backends
// ABOUTME: Publishes the backend's port and URL scheme under the livedub service type
package discovery

import (
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service type announced by dubbing backends
const ServiceType = "_livedub._tcp"

// Advertisement is a running mDNS responder
type Advertisement struct {
	server *mdns.Server
}

// Advertise announces a backend called name listening on port.
// The responder runs until Close.
func Advertise(name string, port int, scheme string) (*Advertisement, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	if scheme == "" {
		scheme = "http"
	}

	ips, err := advertisedIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to list interface addresses: %w", err)
	}

	service, err := mdns.NewMDNSService(name, ServiceType, "", "", port, ips, txtRecords(scheme))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising %s as %s on port %d (%d addresses)", ServiceType, name, port, len(ips))
	return &Advertisement{server: server}, nil
}

// Close stops answering queries
func (a *Advertisement) Close() error {
	return a.server.Shutdown()
}

func txtRecords(scheme string) []string {
	return []string{"path=/api", "scheme=" + scheme}
}

// advertisedIPs returns the IPv4 addresses of interfaces that are up,
// skipping loopback
func advertisedIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil {
				ips = append(ips, v4)
			}
		}
	}
	return ips, nil
}
