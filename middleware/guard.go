package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
)

const (
	headerDeviceID = "X-Device-ID"
	headerPlatform = "Sec-CH-UA-Platform"
)

// Guard returns middleware that authorizes every request with guard.
func Guard(guard *portfolioAuth.Guard, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sink := portfolioAuth.AcquireSink()
			defer sink.Release()

			ctx := portfolioAuth.WithFingerprint(r.Context(), FingerprintFromRequest(r))
			auth, err := guard.Authorize(ctx, portfolioAuth.Call{
				Credentials: CredentialsFromRequest(r, opts),
				Sink:        sink,
				DeviceID:    DeviceID(r),
			})
			if sink.Rotated() {
				SetCredentialCookies(w, sink.Take(), opts)
			}
			if err != nil {
				status := StatusFor(err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			next.ServeHTTP(w, r.WithContext(portfolioAuth.WithAuthorization(ctx, auth)))
		})
	}
}

// StatusFor maps a guard or engine error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, portfolioAuth.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, portfolioAuth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, portfolioAuth.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, portfolioAuth.ErrLoginRateLimited), errors.Is(err, portfolioAuth.ErrRenewRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusUnauthorized
	}
}

// CredentialsFromRequest collects the token pair of r. It returns nil when
// the request carries neither token.
func CredentialsFromRequest(r *http.Request, opts Options) *portfolioAuth.Credentials {
	access := cookieValue(r, opts.Cookies.AccessName)
	if access == "" {
		access, _ = bearerToken(r.Header.Get("Authorization"))
	}
	refresh := cookieValue(r, opts.Cookies.RefreshName)
	if access == "" && refresh == "" {
		return nil
	}
	return portfolioAuth.NewCredentials(access, refresh)
}

// DeviceID identifies the client device of r.
func DeviceID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(headerDeviceID)); id != "" {
		return id
	}
	return clientHost(r)
}

// FingerprintFromRequest captures the client environment of r.
func FingerprintFromRequest(r *http.Request) portfolioAuth.Fingerprint {
	return portfolioAuth.Fingerprint{
		IP:       clientHost(r),
		Platform: strings.Trim(r.Header.Get(headerPlatform), `"`),
		Browser:  r.UserAgent(),
	}
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func cookieValue(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
