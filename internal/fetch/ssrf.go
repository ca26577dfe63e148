package fetch

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

// addrIsBlocked reports whether an address must never be fetched:
// loopback, RFC1918 and ULA private space, link-local, CGNAT, multicast,
// and the unspecified address.
func addrIsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return true
	}
	// 100.64.0.0/10 (carrier-grade NAT) is not covered by IsPrivate.
	if addr.Is4() {
		b := addr.As4()
		if b[0] == 100 && b[1] >= 64 && b[1] < 128 {
			return true
		}
	}
	return false
}

// CheckHostLiteral applies the SSRF check to literal IP targets without
// touching the resolver. Hostname targets are resolved and re-checked at
// fetch time.
func CheckHostLiteral(host string) error {
	if addr, err := netip.ParseAddr(host); err == nil && addrIsBlocked(addr) {
		return guard(model.CodeSSRFBlocked, fmt.Errorf("address %s is not routable externally", addr))
	}
	return nil
}

// CheckHost rejects hosts that are, or resolve to, blocked addresses.
// Resolution failures are fetch failures, not SSRF verdicts.
func CheckHost(ctx context.Context, host string) error {
	if addr, err := netip.ParseAddr(host); err == nil {
		if addrIsBlocked(addr) {
			return guard(model.CodeSSRFBlocked, fmt.Errorf("address %s is not routable externally", addr))
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return guard(model.CodeFetchFailed, fmt.Errorf("resolve %s: %w", host, err))
	}
	for _, addr := range addrs {
		if addrIsBlocked(addr) {
			return guard(model.CodeSSRFBlocked, fmt.Errorf("%s resolves to %s", host, addr))
		}
	}
	return nil
}

// dialControl re-checks the address actually dialed, closing the gap
// between resolution check and connect.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("fetch: split %s: %w", address, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("fetch: parse dialed address %s: %w", host, err)
	}
	if addrIsBlocked(addr) {
		return guard(model.CodeSSRFBlocked, fmt.Errorf("dial to %s refused", addr))
	}
	return nil
}
