package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/MrEthical07/portfolioAuth/session"
	"github.com/spf13/pflag"
)

type sessionsFlags struct {
	configPath string
	subject    int64
	tokenID    string
	deviceID   string
	reason     string
}

func runSessions(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: portfolioauth sessions list|banned|revoke|ban [flags]")
	}
	action := args[0]

	var f sessionsFlags
	fs := pflag.NewFlagSet("sessions "+action, pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file (PORTFOLIO_AUTH_* variables apply on top)")
	fs.Int64Var(&f.subject, "subject", 0, "user id")
	fs.StringVar(&f.tokenID, "token", "", "token id; empty selects every session")
	fs.StringVar(&f.deviceID, "device", "", "device id; empty selects every device")
	fs.StringVar(&f.reason, "reason", "", "ban reason")
	if ok, err := parseFlags(fs, args[1:], stdout); !ok {
		return err
	}
	if f.subject <= 0 {
		return errors.New("--subject is required")
	}

	cfg, err := portfolioAuth.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	client, err := cfg.Redis.Client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := session.NewStore(client, cfg.Session.RedisPrefix, cfg.Session.MaxSessionsPerSubject)
	return sessionsAction(ctx, store, action, f, stdout)
}

func sessionsAction(ctx context.Context, store *session.Store, action string, f sessionsFlags, stdout io.Writer) error {
	subject := strconv.FormatInt(f.subject, 10)

	switch action {
	case "list":
		recs, err := store.GetActiveAll(ctx, subject, f.tokenID, f.deviceID)
		if err != nil {
			return err
		}
		return printRecords(stdout, recs)
	case "banned":
		recs, err := store.GetBanned(ctx, subject, f.tokenID, f.deviceID)
		if err != nil {
			return err
		}
		return printRecords(stdout, recs)
	case "revoke":
		var (
			n   int
			err error
		)
		switch {
		case f.tokenID != "" && f.deviceID != "":
			var ok bool
			ok, err = store.Revoke(ctx, subject, f.tokenID, f.deviceID)
			if ok {
				n = 1
			}
		case f.deviceID != "":
			n, err = store.Delete(ctx, subject, f.deviceID)
		case f.tokenID != "":
			return errors.New("--token needs --device")
		default:
			n, err = store.DeleteAll(ctx, subject)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "revoked %d session(s)\n", n)
		return nil
	case "ban":
		n, err := store.Ban(ctx, subject, f.tokenID, f.reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "banned %d session(s)\n", n)
		return nil
	default:
		return fmt.Errorf("unknown sessions action %q", action)
	}
}

func printRecords(w io.Writer, recs []*session.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tDEVICE\tCREATED\tEXPIRES\tBAN REASON")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.TokenID,
			rec.DeviceID,
			time.UnixMicro(rec.CreatedAt).UTC().Format(time.RFC3339),
			time.Unix(rec.ExpiresAt, 0).UTC().Format(time.RFC3339),
			rec.BanReason,
		)
	}
	return tw.Flush()
}
