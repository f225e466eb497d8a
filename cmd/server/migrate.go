package main

import (
	"github.com/spf13/cobra"

	"github.com/rl1809/course-checkout/internal/core/domain"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the courses and orders tables for the configured driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, ledger, err := openLedger(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := ledger.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("schema migrated", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func seedCourseCmd() *cobra.Command {
	var course domain.Course

	cmd := &cobra.Command{
		Use:   "seed-course",
		Short: "Insert or update a catalog course",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, ledger, err := openLedger(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := ledger.Migrate(ctx); err != nil {
				return err
			}
			if err := ledger.SaveCourse(ctx, course); err != nil {
				return err
			}
			logger.Info("course saved", "course_id", course.ID, "price", course.Price)
			return nil
		},
	}

	cmd.Flags().StringVar(&course.ID, "id", "", "course id")
	cmd.Flags().StringVar(&course.Title, "title", "", "course title")
	cmd.Flags().Int64Var(&course.Price, "price", 0, "price in VND")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("price")
	return cmd
}
