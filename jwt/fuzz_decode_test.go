package jwt

import (
	"testing"
	"time"

	"github.com/MrEthical07/portfolioAuth/permission"
)

// FuzzDecode feeds arbitrary strings to the decoder. It must never panic and
// anything it accepts must carry a known type and a subject.
func FuzzDecode(f *testing.F) {
	m, _ := newTestManager(f)

	access, err := m.EncodeAccess(m.NewAccessClaims("1", permission.User, time.Now()))
	if err != nil {
		f.Fatal(err)
	}
	refresh, err := m.EncodeRefresh(m.NewRefreshClaims("1", "jti", time.Now()))
	if err != nil {
		f.Fatal(err)
	}

	f.Add(access)
	f.Add(refresh)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiIxIiwidHlwZSI6ImFjY2VzcyJ9.")
	f.Add(access[:len(access)/2])

	f.Fuzz(func(t *testing.T, input string) {
		p := m.Decode(input)
		if p == nil {
			return
		}
		if p.SubjectID() == "" {
			t.Fatal("decoded payload without subject")
		}
		if p.TokenType() != TypeAccess && p.TokenType() != TypeRefresh {
			t.Fatalf("decoded unknown type %q", p.TokenType())
		}
	})
}
