package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const joinPollInterval = 500 * time.Millisecond

// InterfaceMAC returns the hardware address of the named interface.
func InterfaceMAC(name string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up interface %s: %w", name, err)
	}

	return iface.HardwareAddr, nil
}

// NetworkJoiner waits for an interface to be up with a routable address. Association itself is
// left to the host network manager.
type NetworkJoiner struct {
	l     *slog.Logger
	iface string
	poll  time.Duration
	// lookup is swapped in tests
	lookup func(name string) (up bool, addrs []net.Addr, err error)
}

func NewNetworkJoiner(l *slog.Logger, iface string) *NetworkJoiner {
	return &NetworkJoiner{
		l:      l.With(slog.String("component", "network"), slog.String("interface", iface)),
		iface:  iface,
		poll:   joinPollInterval,
		lookup: lookupInterface,
	}
}

func lookupInterface(name string) (bool, []net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false, nil, err
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return false, nil, err
	}

	return iface.Flags&net.FlagUp != 0, addrs, nil
}

// Join polls until the interface is ready or ctx is done.
func (j *NetworkJoiner) Join(ctx context.Context, hostname string) error {
	j.l.Info("waiting for network", slog.String("hostname", hostname))

	t := time.NewTicker(j.poll)
	defer t.Stop()

	var lastErr error

	for {
		up, addrs, err := j.lookup(j.iface)
		if err != nil {
			lastErr = err
		} else if addr := routableAddr(addrs); up && addr != nil {
			j.l.Info("network ready", slog.String("address", addr.String()))
			return nil
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("network %s not ready: %w", j.iface, lastErr)
			}

			return fmt.Errorf("network %s not ready: %w", j.iface, ctx.Err())
		case <-t.C:
		}
	}
}

func routableAddr(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP

		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}

		if ip.IsGlobalUnicast() && !ip.IsLinkLocalUnicast() {
			return ip
		}
	}

	return nil
}
