package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/shared"
)

// Setup creates the config file when it is missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = cmd.String("config")
	}

	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			r.writePlain("✓ Created %s\n", configPath)
		}
	}

	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	version, err := shared.CurrentVersion(r.db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready: %s (schema version %d)\n", r.config.Database.Path, version)
	r.writePlain("✓ Preferences: %s\n", r.config.Preferences.Path)
	return nil
}
