package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MrEthical07/portfolioAuth/jwt"
	"github.com/spf13/pflag"
)

func runKeygen(args []string, stdout io.Writer) error {
	var (
		outDir string
		method string
		force  bool
	)
	fs := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	fs.StringVar(&outDir, "out-dir", ".", "directory for jwt.key and jwt.pub")
	fs.StringVar(&method, "method", string(jwt.MethodEd25519), "signing method: ed25519 or rs256")
	fs.BoolVar(&force, "force", false, "overwrite existing key files")
	if ok, err := parseFlags(fs, args, stdout); !ok {
		return err
	}

	priv, pub, err := jwt.GenerateKeyPairPEM(jwt.SigningMethod(method))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return err
	}
	privPath := filepath.Join(outDir, "jwt.key")
	pubPath := filepath.Join(outDir, "jwt.pub")
	if !force {
		for _, p := range []string{privPath, pubPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s exists; use --force to overwrite", p)
			}
		}
	}

	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %s and %s\n", privPath, pubPath)
	return nil
}
