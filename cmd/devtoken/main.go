// Command devtoken mints a JWT for calling the API locally.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vjpiles/backend/internal/domain"
	"github.com/vjpiles/backend/internal/service"
)

func main() {
	userID := pflag.String("user", "dev-user", "user ID (sub claim)")
	email := pflag.String("email", "", "email claim")
	role := pflag.String("role", "user", "role claim (user or admin)")
	ttl := pflag.Duration("ttl", 24*time.Hour, "token lifetime")
	secret := pflag.String("secret", "", "signing secret (defaults to $JWT_SECRET)")
	pflag.Parse()

	if *secret == "" {
		viper.AutomaticEnv()
		*secret = viper.GetString("JWT_SECRET")
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set and --secret was not given")
		os.Exit(2)
	}

	token, err := service.NewAuthService(*secret).IssueToken(domain.Identity{
		UserID: *userID,
		Email:  *email,
		Role:   *role,
	}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
