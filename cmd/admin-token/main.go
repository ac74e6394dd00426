// admin-token prints a bearer token for the admin endpoints, signed with
// ADMIN_SECRET.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"codesync-backend/internal/env"
	internaljwt "codesync-backend/internal/jwt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env.Load()

	flagSet := pflag.NewFlagSet("admin-token", pflag.ContinueOnError)
	subject := flagSet.String("subject", "admin", "token subject")
	ttl := flagSet.Duration("ttl", internaljwt.DefaultTTL, "token lifetime")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	internaljwt.Configure(internaljwt.RoleAdmin, env.MustGet(env.AdminSecretKey))

	token, err := internaljwt.CreateToken(*subject, internaljwt.RoleAdmin, time.Now().Add(*ttl).Unix())
	if err != nil {
		return err
	}
	fmt.Println(token.AccessToken)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339))
	return nil
}
