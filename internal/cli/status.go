package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/edgesync/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the number of stored edges and the last update time",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.Timeout)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewEdgeRepo(db)

	latest, err := repo.LatestUpdate(ctx)
	if err != nil {
		slog.Error("Failed to query last update", "error", err)
		os.Exit(1)
	}
	count, err := repo.Count(ctx)
	if err != nil {
		slog.Error("Failed to count edges", "error", err)
		os.Exit(1)
	}

	lastUpdate := "never"
	if latest != nil {
		lastUpdate = fmt.Sprintf("%s (%s ago)", latest.Format(time.RFC3339), time.Since(*latest).Truncate(time.Second))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "EDGES\tLAST UPDATE")
	_, _ = fmt.Fprintf(w, "%d\t%s\n", count, lastUpdate)
	_ = w.Flush()
}
