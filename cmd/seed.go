package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/techagentng/collabhub/config"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/services"
)

type seedUser struct {
	UID string
	models.SignupRequest
}

var seedUsers = []seedUser{
	{"influencer-001", models.SignupRequest{
		Email: "influencer@example.com", UserType: models.RoleInfluencer, DisplayName: "John Doe",
		Category: "Tech", Location: "San Francisco", Bio: "Tech enthusiast sharing knowledge.",
	}},
	{"business-001", models.SignupRequest{
		Email: "business@example.com", UserType: models.RoleBusiness, DisplayName: "Jane's Restaurant",
		Category: "Food & Drink", Location: "Los Angeles", Bio: "Best pizza in town!",
	}},
	{"influencer-002", models.SignupRequest{
		Email: "influencer2@example.com", UserType: models.RoleInfluencer, DisplayName: "Alice Smith",
		Category: "Fashion", Location: "New York", Bio: "Fashion influencer and stylist.",
	}},
	{"business-002", models.SignupRequest{
		Email: "business2@example.com", UserType: models.RoleBusiness, DisplayName: "Mark's Gym",
		Category: "Fitness", Location: "Chicago", Bio: "Get fit with us at Mark's Gym.",
	}},
}

var printTokens bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(conf)
		if err != nil {
			return err
		}
		defer st.close()

		if err := seed(cmd.Context(), services.NewProfileService(st.users, conf)); err != nil {
			return err
		}
		if printTokens {
			return printDevTokens(cmd)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&printTokens, "tokens", false, "print a day-long access token per demo user (jwt auth mode only)")
}

func seed(ctx context.Context, profiles services.ProfileService) error {
	for _, u := range seedUsers {
		req := u.SignupRequest
		_, err := profiles.Signup(ctx, u.UID, &req)
		switch {
		case errors.Is(err, errs.ErrProfileExists):
			log.Info().Str("uid", u.UID).Msg("profile already seeded")
		case err != nil:
			return fmt.Errorf("seed %s: %w", u.UID, err)
		default:
			log.Info().Str("uid", u.UID).Msg("profile seeded")
		}
	}
	return nil
}

func printDevTokens(cmd *cobra.Command) error {
	if conf.AuthMode != config.AuthJWT {
		return fmt.Errorf("tokens can only be issued in %q auth mode", config.AuthJWT)
	}
	identity := services.NewJWTIdentity(conf.JWTSecret)
	for _, u := range seedUsers {
		token, err := identity.Issue(u.UID, 24*time.Hour)
		if err != nil {
			return err
		}
		cmd.Printf("%s\t%s\n", u.UID, token)
	}
	return nil
}
