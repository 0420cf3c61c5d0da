// Package failure classifies errors returned by model runtimes.
package failure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/sashabaranov/go-openai"

	"github.com/satriahrh/lingua/domain"
)

// Classify wraps err with a domain kind. Runtimes that cannot be reached, or
// that do not serve the requested model, are ModelUnavailable; anything else
// gets fallback.
func Classify(err error, fallback domain.Kind, message string) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	if IsUnavailable(err) {
		return domain.NewError(domain.KindModelUnavailable, message, err)
	}
	return domain.NewError(fallback, message, err)
}

// IsUnavailable reports whether err means the runtime is down or missing the model.
func IsUnavailable(err error) bool {
	if IsUnreachable(err) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return unavailableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return unavailableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

// IsUnreachable reports whether err is a transport failure reaching the runtime.
func IsUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return urlErr.Op != ""
	}
	return false
}

func unavailableStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusServiceUnavailable || code == http.StatusBadGateway
}
