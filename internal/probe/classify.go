package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/hamed0406/sitecheck/internal/domain"
)

// Classify maps a client error onto a failure kind. Order matters: a DNS
// timeout is reported as dns, a dial timeout as timeout.
func Classify(err error) domain.FailureKind {
	if err == nil {
		return domain.KindUnknown
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.KindDNS
	}

	if errors.Is(err, context.Canceled) {
		return domain.KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTimeout
	}

	var (
		recErr      tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	if errors.As(err, &recErr) || errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &invalidCert) {
		return domain.KindTLS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.KindConnect
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "unsupported protocol scheme") {
		return domain.KindInvalid
	}
	if strings.Contains(err.Error(), "tls:") {
		return domain.KindTLS
	}
	return domain.KindProtocol
}
