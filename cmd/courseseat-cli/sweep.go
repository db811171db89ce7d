package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/database"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/jobqueue"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale pending enrollments once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db := database.SetupDatabase(cfg.DB)
			manager := jobqueue.NewManager(repository.NewFactory(db).GetEnrollmentRepository(), nil, cfg.Jobs)

			n, err := manager.ExpirePendingOnce(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Expired %d pending enrollments older than %s\n", n, cfg.Jobs.PendingTTL)
			return nil
		},
	}
}
