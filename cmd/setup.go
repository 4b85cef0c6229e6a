package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/mixbridge/internal/shared"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("%s %s\n", r.palette.OK("✓"), "Configuration written to "+r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [source.spotify] and [backend] credentials (or export SPOTIFY_CLIENT_ID, SLSKD_API_KEY, ...)\n")
	r.writePlain("2. Point [paths] at your staging, intake and library directories\n")
	r.writePlain("3. Run 'mixbridge index build' and then 'mixbridge sync'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations, or with --rollback reverts the
// most recent migration.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("rollback") {
		return r.rollbackDatabase()
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("%s Database ready at %s\n", r.palette.OK("✓"), r.config.Database.Path)
}

func (r *Runner) rollbackDatabase() error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Warn("rolled back latest migration", "path", r.config.Database.Path)
	return r.writePlain("%s Rolled back the latest migration on %s\n", r.palette.Warn("!"), r.config.Database.Path)
}
