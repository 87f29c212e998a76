// portfolioauth is the operator tool for the portfolio auth subsystem: it
// generates signing keys, inspects and revokes sessions in Redis, and load
// tests the renewal path.
//
//	portfolioauth keygen   --out-dir ./keys
//	portfolioauth check    --config auth.yaml
//	portfolioauth sessions list   --config auth.yaml --subject 42
//	portfolioauth sessions ban    --config auth.yaml --subject 42 --reason abuse
//	portfolioauth loadtest --users 200 --racers 8
//	portfolioauth version
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return errors.New("missing command")
	}

	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout)
	case "check":
		return runCheck(args[1:], stdout)
	case "sessions":
		return runSessions(args[1:], stdout)
	case "loadtest":
		return runLoadtest(args[1:], stdout)
	case "version", "--version":
		fmt.Fprintf(stdout, "portfolioauth %s\n", version)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: portfolioauth <command> [flags]

commands:
  keygen     write a signing key pair
  check      validate a config file and print its security posture
  sessions   list, banned, revoke or ban sessions of a user
  loadtest   race concurrent renewals against Redis
  version    print the version
`)
}

// parseFlags parses args and turns --help into a nil error after printing
// the defaults.
func parseFlags(fs *pflag.FlagSet, args []string, stdout io.Writer) (bool, error) {
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
