package probe

import (
	"errors"
	"net"
)

// DNS failure classes appended to dns failure messages.
const (
	DNSNXDomain       = "NXDOMAIN"
	DNSServfailOrTime = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName    = "INVALID_NAME"
)

// DNSClass tells a name that does not exist apart from a resolver that did
// not answer. It reads the resolver error the probe already has and performs
// no lookups of its own, so it costs nothing against the probe timeout.
func DNSClass(err error) string {
	var de *net.DNSError
	if !errors.As(err, &de) {
		return ""
	}
	switch {
	case de.IsNotFound:
		return DNSNXDomain
	case de.IsTimeout || de.IsTemporary:
		return DNSServfailOrTime
	case de.Name == "":
		return DNSInvalidName
	default:
		return DNSServfailOrTime
	}
}
