package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/provider"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <profile-id>",
	Short: "Run the verification waterfall for one person's contact data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		person, err := env.Store.GetPersonByProfileID(ctx, args[0])
		if err != nil {
			return err
		}

		pc := provider.PersonContext{
			ProfileID: person.ProfileID,
			Name:      person.Name,
			Title:     person.Title,
		}

		email := env.Runner.Resolve(ctx, model.FieldEmail, person.Email.Value, pc)
		phone := env.Runner.Resolve(ctx, model.FieldPhone, person.Phone.Value, pc)

		person.Email = email.ContactField()
		person.Phone = phone.ContactField()
		person.ScheduleNext(time.Now().UTC())

		if err := env.Store.UpdatePerson(ctx, person); err != nil {
			return err
		}

		zap.L().Info("verification complete",
			zap.String("profile_id", person.ProfileID),
			zap.String("email_provenance", string(person.Email.Provenance)),
			zap.String("phone_provenance", string(person.Phone.Provenance)),
			zap.Float64("spend_usd", env.Ledger.TotalUSD()))

		out := struct {
			ProfileID string             `json:"profile_id"`
			Email     model.ContactField `json:"email"`
			Phone     model.ContactField `json:"phone"`
			SpendUSD  float64            `json:"spend_usd"`
		}{person.ProfileID, person.Email, person.Phone, env.Ledger.TotalUSD()}

		return json.NewEncoder(os.Stdout).Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
