package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/spf13/pflag"
)

// runCheck loads a config file, which validates it, and prints its security
// posture. Warnings are printed but do not fail the command.
func runCheck(args []string, stdout io.Writer) error {
	var configPath string
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "YAML config file (PORTFOLIO_AUTH_* variables apply on top)")
	if ok, err := parseFlags(fs, args, stdout); !ok {
		return err
	}

	cfg, err := portfolioAuth.LoadConfig(configPath)
	if err != nil {
		return err
	}

	r := cfg.SecurityReport()
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "signing algorithm\t%s\n", r.SigningAlgorithm)
	fmt.Fprintf(tw, "access ttl\t%s\n", r.AccessTTL)
	fmt.Fprintf(tw, "refresh ttl\t%s\n", r.RefreshTTL)
	fmt.Fprintf(tw, "argon2\tmemory=%dKiB time=%d parallelism=%d\n", r.Argon2.Memory, r.Argon2.Time, r.Argon2.Parallelism)
	fmt.Fprintf(tw, "sessions per user\t%d\n", r.MaxSessionsPerSubject)
	fmt.Fprintf(tw, "fingerprint enforced\t%t\n", r.FingerprintEnforced)
	fmt.Fprintf(tw, "login throttle\t%t\n", r.LoginThrottleActive)
	fmt.Fprintf(tw, "renew throttle\t%t\n", r.RenewThrottleActive)
	fmt.Fprintf(tw, "audit\t%t (may drop: %t)\n", r.AuditEnabled, r.AuditMayDrop)
	fmt.Fprintf(tw, "metrics\t%t\n", r.MetricsEnabled)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	return nil
}
