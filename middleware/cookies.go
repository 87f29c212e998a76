package middleware

import (
	"net/http"
	"time"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
)

// Options configures cookie handling for Guard and the cookie helpers.
type Options struct {
	Cookies    portfolioAuth.CookieConfig
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// OptionsFromConfig takes cookie names and lifetimes from an engine config.
func OptionsFromConfig(cfg portfolioAuth.Config) Options {
	return Options{
		Cookies:    cfg.Cookie,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}
}

func (o Options) path() string {
	if o.Cookies.Path == "" {
		return "/"
	}
	return o.Cookies.Path
}

// SetCredentialCookies writes both tokens as http-only cookies. The refresh
// cookie is always Secure.
func SetCredentialCookies(w http.ResponseWriter, creds *portfolioAuth.Credentials, opts Options) {
	if creds == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     opts.Cookies.AccessName,
		Value:    creds.GetAuthorize(),
		Path:     opts.path(),
		Domain:   opts.Cookies.Domain,
		MaxAge:   int(opts.AccessTTL / time.Second),
		HttpOnly: true,
		Secure:   opts.Cookies.SecureAccess,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     opts.Cookies.RefreshName,
		Value:    creds.GetAuthenticate(),
		Path:     opts.path(),
		Domain:   opts.Cookies.Domain,
		MaxAge:   int(opts.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCredentialCookies expires both credential cookies.
func ClearCredentialCookies(w http.ResponseWriter, opts Options) {
	for _, name := range []string{opts.Cookies.AccessName, opts.Cookies.RefreshName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     opts.path(),
			Domain:   opts.Cookies.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   name == opts.Cookies.RefreshName || opts.Cookies.SecureAccess,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
