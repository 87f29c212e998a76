package portfolioAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/portfolioAuth/internal"
	"github.com/MrEthical07/portfolioAuth/session"
)

const banReasonFingerprint = "fingerprint mismatch"

// RenewCredentials exchanges the refresh token of creds for a new pair. The
// old session is removed in the same atomic step that registers the new
// one, so a refresh token is accepted at most once.
//
//	Flow: decode → subject check → lookup → fingerprint → mint → rotate.
//	Performance: 1 GET + 1 Lua script.
func (e *Engine) RenewCredentials(ctx context.Context, creds *Credentials, user *User, deviceID string) (*Credentials, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	deviceID = normalizeDeviceID(deviceID)

	claims, ok := e.jwtManager.DecodeRefresh(creds.GetAuthenticate())
	if !ok || !internal.ValidTokenID(claims.TokenID) {
		return nil, e.renewFailed(ctx, auditRecord{deviceID: deviceID}, newTokenError("invalid or expired refresh token"))
	}
	rec := auditRecord{subject: claims.Subject, tokenID: claims.TokenID, deviceID: deviceID}

	if user == nil || user.Subject() != claims.Subject {
		return nil, e.renewFailed(ctx, rec, ErrSubjectNotFound)
	}

	if err := mapRateError(e.rateLimiter.CheckRenew(ctx, claims.Subject), ErrRenewRateLimited); err != nil {
		if errors.Is(err, ErrRenewRateLimited) {
			e.metricInc(MetricRenewRateLimited)
		}
		return nil, e.renewFailed(ctx, rec, err)
	}

	current, err := e.sessions.GetActiveOne(ctx, claims.Subject, claims.TokenID, deviceID)
	if err != nil {
		return nil, e.renewFailed(ctx, rec, err)
	}
	if current == nil {
		return nil, e.renewFailed(ctx, rec, newTokenError("unknown token"))
	}

	fp, hasFingerprint := FingerprintFromContext(ctx)
	if mismatched := e.fingerprintMismatch(current, fp); len(mismatched) > 0 {
		e.banForFingerprint(ctx, current, mismatched)
		return nil, e.renewFailed(ctx, rec, newTokenError(banReasonFingerprint))
	}

	hashes := fingerprintHashes{ip: current.IPHash, platform: current.PlatformHash, browser: current.BrowserHash}
	if hasFingerprint {
		hashes = fp.hashes()
	}

	next, nextRec, err := e.mint(user, deviceID, hashes)
	if err != nil {
		return nil, e.renewFailed(ctx, rec, err)
	}

	if err := e.sessions.Rotate(ctx, claims.TokenID, current.DeviceID, nextRec); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			e.metricInc(MetricRenewRaceLost)
			err = newTokenError("unknown token")
		}
		return nil, e.renewFailed(ctx, rec, err)
	}

	e.metricInc(MetricRenewSuccess)
	e.emitAudit(ctx, auditEventRenewSuccess, true, auditRecord{
		subject:  claims.Subject,
		tokenID:  nextRec.TokenID,
		deviceID: deviceID,
		metadata: func() map[string]string {
			return map[string]string{"previous_token_id": claims.TokenID}
		},
	})

	return next, nil
}

func (e *Engine) renewFailed(ctx context.Context, rec auditRecord, err error) error {
	e.metricInc(MetricRenewFailure)
	rec.err = err
	e.emitAudit(ctx, auditEventRenewInvalid, false, rec)
	return err
}

// fingerprintMismatch returns the names of the checked components whose
// current value differs from the one captured at login.
func (e *Engine) fingerprintMismatch(rec *session.Record, fp Fingerprint) []string {
	cfg := e.config.Fingerprint
	if !cfg.Enforce {
		return nil
	}

	var mismatched []string
	if cfg.CheckIP && internal.BindingMismatch(rec.IPHash, fp.IP) {
		mismatched = append(mismatched, "ip")
	}
	if cfg.CheckPlatform && internal.BindingMismatch(rec.PlatformHash, fp.Platform) {
		mismatched = append(mismatched, "platform")
	}
	if cfg.CheckBrowser && internal.BindingMismatch(rec.BrowserHash, fp.Browser) {
		mismatched = append(mismatched, "browser")
	}
	return mismatched
}

func (e *Engine) banForFingerprint(ctx context.Context, rec *session.Record, mismatched []string) {
	e.metricInc(MetricFingerprintMismatch)
	e.emitAudit(ctx, auditEventFingerprintMismatch, false, auditRecord{
		subject:  rec.Subject,
		tokenID:  rec.TokenID,
		deviceID: rec.DeviceID,
		metadata: func() map[string]string {
			return map[string]string{"components": strings.Join(mismatched, ",")}
		},
	})

	n, err := e.sessions.Ban(ctx, rec.Subject, rec.TokenID, banReasonFingerprint)
	if err != nil {
		e.logger.Warn("ban after fingerprint mismatch failed",
			"subject", rec.Subject, "token_id", rec.TokenID, "error", err)
		return
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionBanned)
	}
	e.emitAudit(ctx, auditEventSessionBanned, true, auditRecord{
		subject:  rec.Subject,
		tokenID:  rec.TokenID,
		deviceID: rec.DeviceID,
		metadata: func() map[string]string {
			return map[string]string{"reason": banReasonFingerprint}
		},
	})
}
