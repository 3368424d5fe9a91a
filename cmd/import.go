package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phasebridge/transition-cli/internal/ingest"
)

var (
	importAwardsPath    string
	importContractsPath string
	importPatentsPath   string
	importLabelsPath    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import feed files into the store",
	Long:  "Reads award, contract, patent, and tech-label feed files (csv or xlsx) and upserts them into the configured store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importAwardsPath == "" && importContractsPath == "" && importPatentsPath == "" && importLabelsPath == "" {
			return eris.New("at least one of --awards, --contracts, --patents, --labels is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		log := zap.L()

		if importAwardsPath != "" {
			awards, err := ingest.ReadAwards(importAwardsPath)
			if err != nil {
				return err
			}
			n, err := st.SaveAwards(ctx, awards)
			if err != nil {
				return eris.Wrap(err, "save awards")
			}
			log.Info("awards imported", zap.Int64("rows", n), zap.String("file", importAwardsPath))
		}

		if importContractsPath != "" {
			contracts, err := ingest.ReadContracts(importContractsPath)
			if err != nil {
				return err
			}
			n, err := st.SaveContracts(ctx, contracts)
			if err != nil {
				return eris.Wrap(err, "save contracts")
			}
			log.Info("contracts imported", zap.Int64("rows", n), zap.String("file", importContractsPath))
		}

		if importPatentsPath != "" {
			patents, err := ingest.ReadPatents(importPatentsPath)
			if err != nil {
				return err
			}
			n, err := st.SavePatents(ctx, patents)
			if err != nil {
				return eris.Wrap(err, "save patents")
			}
			log.Info("patents imported", zap.Int64("rows", n), zap.String("file", importPatentsPath))
		}

		if importLabelsPath != "" {
			awardAreas, contractAreas, err := ingest.ReadTechLabels(importLabelsPath)
			if err != nil {
				return err
			}
			n, err := st.SaveTechLabels(ctx, awardAreas, contractAreas)
			if err != nil {
				return eris.Wrap(err, "save tech labels")
			}
			log.Info("tech labels imported", zap.Int64("rows", n), zap.String("file", importLabelsPath))
		}

		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importAwardsPath, "awards", "", "awards feed file (csv or xlsx)")
	importCmd.Flags().StringVar(&importContractsPath, "contracts", "", "contracts feed file (csv or xlsx)")
	importCmd.Flags().StringVar(&importPatentsPath, "patents", "", "patent references file")
	importCmd.Flags().StringVar(&importLabelsPath, "labels", "", "tech-area labels file")
	rootCmd.AddCommand(importCmd)
}
