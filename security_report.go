package portfolioAuth

import "github.com/MrEthical07/portfolioAuth/internal/security"

// SecurityReport is a read-only summary of a configuration's security
// posture, returned by [Config.SecurityReport] and [Engine.SecurityReport].
type SecurityReport = security.Report

// SecurityReport summarizes c. It does not validate c.
func (c Config) SecurityReport() SecurityReport {
	checks := 0
	for _, on := range []bool{c.Fingerprint.CheckIP, c.Fingerprint.CheckPlatform, c.Fingerprint.CheckBrowser} {
		if on {
			checks++
		}
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: c.JWT.SigningMethod,
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.JWT.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		MaxSessionsPerSubject: c.Session.MaxSessionsPerSubject,
		FingerprintEnforce:    c.Fingerprint.Enforce,
		FingerprintChecks:     checks,
		MaxLoginAttempts:      c.Security.MaxLoginAttempts,
		LoginCooldown:         c.Security.LoginCooldown,
		MaxRenewalsPerHour:    c.Security.MaxRenewalsPerHour,
		AuditEnabled:          c.Audit.Enabled,
		AuditDropIfFull:       c.Audit.DropIfFull,
		MetricsEnabled:        c.Metrics.Enabled,
	})
}

// SecurityReport summarizes the configuration the engine was built with.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return e.config.SecurityReport()
}
