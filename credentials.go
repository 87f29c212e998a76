package portfolioAuth

import "sync"

// Credentials is an access/refresh token pair. It is a value: rotation
// produces a new Credentials and never mutates an existing one.
type Credentials struct {
	access  string
	refresh string
}

// NewCredentials wraps an access and a refresh token.
func NewCredentials(access, refresh string) *Credentials {
	return &Credentials{access: access, refresh: refresh}
}

// GetAuthorize returns the access token.
func (c *Credentials) GetAuthorize() string {
	if c == nil {
		return ""
	}
	return c.access
}

// GetAuthenticate returns the refresh token.
func (c *Credentials) GetAuthenticate() string {
	if c == nil {
		return ""
	}
	return c.refresh
}

// CredentialSink receives credentials rotated during a guarded call so the
// transport can hand them back to the client. A sink belongs to one request
// and has a single writer.
type CredentialSink struct {
	creds *Credentials
}

var sinkPool = sync.Pool{
	New: func() any { return new(CredentialSink) },
}

// AcquireSink returns an empty sink from the pool. Callers must Release it
// when the request completes.
func AcquireSink() *CredentialSink {
	return sinkPool.Get().(*CredentialSink)
}

// Release resets s and returns it to the pool. s must not be used afterwards.
func (s *CredentialSink) Release() {
	if s == nil {
		return
	}
	s.creds = nil
	sinkPool.Put(s)
}

// Set stores rotated credentials.
func (s *CredentialSink) Set(c *Credentials) {
	if s == nil {
		return
	}
	s.creds = c
}

// Take returns the stored credentials and clears the sink.
func (s *CredentialSink) Take() *Credentials {
	if s == nil {
		return nil
	}
	c := s.creds
	s.creds = nil
	return c
}

// Rotated reports whether the sink holds credentials.
func (s *CredentialSink) Rotated() bool {
	return s != nil && s.creds != nil
}
