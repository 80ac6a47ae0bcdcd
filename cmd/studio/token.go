package main

import (
	"fmt"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-studio/internal/auth"
	"github.com/suPer8Hu/ai-studio/internal/db"
	"github.com/suPer8Hu/ai-studio/internal/models"
)

var (
	tokenEmail string
	tokenName  string
	tokenTTL   time.Duration
)

// identities are owned by an external auth system; this mints a session for
// local use and scripting.
var tokenCMD = &cobra.Command{
	Use:   "token",
	Short: "issue a session token for a user, creating the user if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(strings.ToLower(tokenEmail))
		if email == "" {
			return errors.New("--email is required")
		}
		cfg, err := initialize()
		if err != nil {
			return err
		}
		gdb, err := db.Connect(cfg.DBDSN)
		if err != nil {
			return err
		}

		u := models.User{Email: email, Name: tokenName}
		if err := gdb.WithContext(cmd.Context()).
			Where(models.User{Email: email}).
			Attrs(models.User{Name: tokenName}).
			FirstOrCreate(&u).Error; err != nil {
			return errors.Wrap(err, "upsert user")
		}

		token, err := auth.SignJWT(u.ID, cfg.JWTSecret, tokenTTL)
		if err != nil {
			return errors.Wrap(err, "sign token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCMD.Flags().StringVar(&tokenEmail, "email", "", "user email")
	tokenCMD.Flags().StringVar(&tokenName, "name", "", "display name for a new user")
	tokenCMD.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCMD.AddCommand(tokenCMD)
}
