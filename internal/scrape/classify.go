package scrape

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"

	infrahttp "github.com/Fusionaimcp4/localboxs/infrastructure/http"
)

// Kind groups fetch failures by how they are reported to the caller.
type Kind int

const (
	KindOther Kind = iota
	KindNotAccessible
	KindTLS
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotAccessible:
		return "not_accessible"
	case KindTLS:
		return "tls"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Classify maps an error returned by Fetch to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return KindNotAccessible
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if isTLSError(err) {
		return KindTLS
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNotAccessible
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindNotAccessible
	}
	if errors.Is(err, infrahttp.ErrTooManyRedirects) {
		return KindNotAccessible
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindNotAccessible
	}

	return KindOther
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &recordErr),
		errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}
