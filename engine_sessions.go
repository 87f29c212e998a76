package portfolioAuth

import (
	"context"
	"strconv"

	"github.com/MrEthical07/portfolioAuth/internal"
	"github.com/MrEthical07/portfolioAuth/session"
)

// Logout ends the session creds belongs to on deviceID. If the refresh token
// is unusable but the access token is valid, every session of that user on
// deviceID is removed instead.
func (e *Engine) Logout(ctx context.Context, creds *Credentials, deviceID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	deviceID = normalizeDeviceID(deviceID)

	var (
		subject string
		tokenID string
		removed int
	)
	if claims, ok := e.jwtManager.DecodeRefresh(creds.GetAuthenticate()); ok && internal.ValidTokenID(claims.TokenID) {
		subject, tokenID = claims.Subject, claims.TokenID
		revoked, err := e.sessions.Revoke(ctx, subject, tokenID, deviceID)
		if err != nil {
			return err
		}
		if revoked {
			removed = 1
		}
	} else if claims, ok := e.jwtManager.DecodeAccess(creds.GetAuthorize()); ok {
		subject = claims.Subject
		n, err := e.sessions.Delete(ctx, subject, deviceID)
		if err != nil {
			return err
		}
		removed = n
	} else {
		return newTokenError("no usable token")
	}

	e.metricInc(MetricLogout)
	for i := 0; i < removed; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutSession, true, auditRecord{
		subject:  subject,
		tokenID:  tokenID,
		deviceID: deviceID,
	})
	return nil
}

// LogoutAll removes every live session of subject and returns how many
// were removed. Access tokens already issued stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, subject int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	sub := strconv.FormatInt(subject, 10)

	n, err := e.sessions.DeleteAll(ctx, sub)
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, auditRecord{
		subject: sub,
		metadata: func() map[string]string {
			return map[string]string{"sessions": strconv.Itoa(n)}
		},
	})
	return n, nil
}

// Ban moves sessions of subject to the banned namespace. An empty tokenID
// bans all of them.
func (e *Engine) Ban(ctx context.Context, subject int64, tokenID, reason string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	sub := strconv.FormatInt(subject, 10)

	n, err := e.sessions.Ban(ctx, sub, tokenID, reason)
	if err != nil {
		return n, err
	}

	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionBanned)
	}
	e.emitAudit(ctx, auditEventSessionBanned, true, auditRecord{
		subject: sub,
		tokenID: tokenID,
		metadata: func() map[string]string {
			return map[string]string{"reason": reason, "sessions": strconv.Itoa(n)}
		},
	})
	return n, nil
}

// ActiveSessions lists the live sessions of subject.
func (e *Engine) ActiveSessions(ctx context.Context, subject int64) ([]*session.Record, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.sessions.GetActiveAll(ctx, strconv.FormatInt(subject, 10), "", "")
}

// BannedSessions lists the banned sessions of subject that have not yet
// expired.
func (e *Engine) BannedSessions(ctx context.Context, subject int64) ([]*session.Record, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.sessions.GetBanned(ctx, strconv.FormatInt(subject, 10), "", "")
}
