package content

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// Classify maps an HTTP status code or a transport error to a link status.
// Certificate errors count as alive: the host answered, only its
// certificate is untrusted.
func Classify(statusCode int, err error) string {
	if err != nil {
		return classifyError(err)
	}

	switch {
	case statusCode == 0:
		return domain.LinkUnreachable
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return domain.LinkNotFound
	case statusCode == http.StatusRequestTimeout:
		return domain.LinkTimeout
	case statusCode >= 500:
		return domain.LinkServerError
	case statusCode >= 200 && statusCode < 500:
		return domain.LinkAlive
	default:
		return domain.LinkUnreachable
	}
}

func classifyError(err error) string {
	if isCertificateError(err) {
		return domain.LinkAlive
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.LinkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.LinkTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.LinkDNSError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout"):
		return domain.LinkTimeout
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "name or service not known"):
		return domain.LinkDNSError
	}
	return domain.LinkUnreachable
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname)
}
