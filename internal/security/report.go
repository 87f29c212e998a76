package security

import (
	"fmt"
	"time"
)

// Argon2 thresholds below which the report warns. They are stricter than
// the hard limits the password package enforces.
const (
	recommendedMemoryKB = 19 * 1024
	recommendedTime     = 2
	maxAccessTTL        = time.Hour
)

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Argon2                PasswordReport
	MaxSessionsPerSubject int
	SessionCapsActive     bool
	FingerprintEnforced   bool
	LoginThrottleActive   bool
	RenewThrottleActive   bool
	AuditEnabled          bool
	AuditMayDrop          bool
	MetricsEnabled        bool
	// Warnings lists settings that are valid but weaker than recommended.
	Warnings []string
}

type ReportInput struct {
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Password              PasswordReport
	MaxSessionsPerSubject int
	FingerprintEnforce    bool
	FingerprintChecks     int
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	MaxRenewalsPerHour    int
	AuditEnabled          bool
	AuditDropIfFull       bool
	MetricsEnabled        bool
}

func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:      input.SigningAlgorithm,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		Argon2:                input.Password,
		MaxSessionsPerSubject: input.MaxSessionsPerSubject,
		SessionCapsActive:     input.MaxSessionsPerSubject > 0,
		FingerprintEnforced:   input.FingerprintEnforce && input.FingerprintChecks > 0,
		LoginThrottleActive:   input.MaxLoginAttempts > 0 && input.LoginCooldown > 0,
		RenewThrottleActive:   input.MaxRenewalsPerHour > 0,
		AuditEnabled:          input.AuditEnabled,
		AuditMayDrop:          input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:        input.MetricsEnabled,
	}

	warn := func(format string, args ...any) {
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	}
	if input.AccessTTL > maxAccessTTL {
		warn("access tokens live %s; role changes and bans take that long to reach them", input.AccessTTL)
	}
	if input.Password.Memory < recommendedMemoryKB || input.Password.Time < recommendedTime {
		warn("argon2 cost (memory=%dKiB time=%d) is below the recommended %dKiB/%d", input.Password.Memory, input.Password.Time, recommendedMemoryKB, recommendedTime)
	}
	if !r.SessionCapsActive {
		warn("sessions per user are unbounded")
	}
	if !r.LoginThrottleActive {
		warn("failed logins are not throttled")
	}
	if input.FingerprintEnforce && input.FingerprintChecks == 0 {
		warn("fingerprint enforcement is on but no component is checked")
	}
	return r
}
