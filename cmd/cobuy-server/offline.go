package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/config"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
	"github.com/persistorai/cobuy/internal/service"
)

// apiKeyPrefix marks cobuy API keys in logs and secret scanners.
const apiKeyPrefix = "cb_"

func newTrainCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "train [merchant-id...]",
		Short: "Train merchant models directly against the backend",
		Long: "Trains the named merchants, or every merchant with transaction " +
			"history when --all is set. Runs are recorded on the training ledger.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass merchant IDs or --all, not both")
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}

			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			artifacts, err := artifact.NewStore(cfg.ArtifactDir, log)
			if err != nil {
				return fmt.Errorf("opening artifact store: %w", err)
			}

			trigger := models.TriggerCLI
			if all {
				trigger = models.TriggerBackfill
				if args, err = be.ListActiveMerchants(cmd.Context()); err != nil {
					return fmt.Errorf("listing merchants: %w", err)
				}
			}

			trainer := service.NewTrainer(be, artifacts, be, nil, nil, log, trainerConfig(cfg))

			return trainMerchants(cmd.Context(), trainer, log, args, trigger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Train every merchant with transaction history")

	return cmd
}

// trainOutcome is one line of train command output.
type trainOutcome struct {
	MerchantID string              `json:"merchant_id"`
	Result     *models.TrainResult `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// trainMerchants trains each merchant in turn and writes one JSON line per
// merchant to out. It keeps going after a failure and reports the failure
// count at the end.
func trainMerchants(
	ctx context.Context, trainer domain.TrainingService, log *logrus.Logger,
	merchantIDs []string, trigger string, out io.Writer,
) error {
	enc := json.NewEncoder(out)
	failed := 0

	for _, id := range merchantIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcome := trainOutcome{MerchantID: id}
		res, err := trainer.Train(ctx, id, trigger)
		if err != nil {
			failed++
			outcome.Error = err.Error()
			log.WithError(err).WithField("merchant_id", id).Error("training failed")
		} else {
			outcome.Result = res
		}

		if err := enc.Encode(outcome); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d merchants failed to train", failed, len(merchantIDs))
	}

	return nil
}

func newMerchantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchant",
		Short: "Manage merchants",
	}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a merchant and print its API key",
		Long:  "Registers a merchant and prints its API key. Only the key's hash is stored, so it cannot be shown again.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			return createMerchant(cmd.Context(), be, name, cmd.OutOrStdout())
		},
	}
	create.Flags().StringVar(&name, "name", "", "Merchant display name")
	_ = create.MarkFlagRequired("name") //nolint:errcheck // flag is defined above.

	cmd.AddCommand(create)

	return cmd
}

type merchantCreator interface {
	CreateMerchant(ctx context.Context, name, apiKey string) (string, error)
}

func createMerchant(ctx context.Context, store merchantCreator, name string, out io.Writer) error {
	apiKey, err := generateAPIKey()
	if err != nil {
		return err
	}

	id, err := store.CreateMerchant(ctx, name, apiKey)
	if err != nil {
		return fmt.Errorf("creating merchant: %w", err)
	}

	fmt.Fprintf(out, "merchant_id: %s\napi_key:     %s\n", id, apiKey)

	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}

	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			if cfg.HistoryBackend != config.BackendPostgres {
				fmt.Fprintln(os.Stderr, "sqlite schema is created on open; nothing to migrate")
			}

			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", be.schemaVersion)

			return nil
		},
	}
}
