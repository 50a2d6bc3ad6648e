package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognition/internal/store"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage enrolled face profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled profiles",
	Long:  `Loads the profile set from the configured backend (PROFILE_BACKEND) and prints it.`,
	Args:  cobra.NoArgs,
	RunE:  runProfilesList,
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an enrolled profile",
	Long:  `Removes a profile and persists the remaining set in one atomic save.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

var profilesMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy all profiles to another backend",
	Long: `Copies the full profile set from the configured backend to the backend named
by --to. The target set is replaced atomically.

Examples:
  # Move profiles from the gob file into PostgreSQL
  face-recognition profiles migrate --to postgres

  # Export profiles from PostgreSQL back to PROFILE_FILE
  PROFILE_BACKEND=postgres face-recognition profiles migrate --to file`,
	Args: cobra.NoArgs,
	RunE: runProfilesMigrate,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd, profilesDeleteCmd, profilesMigrateCmd)

	profilesListCmd.Flags().Bool("json", false, "Output as JSON")
	profilesMigrateCmd.Flags().String("to", "", "Target backend (file or postgres)")
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	profiles, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	summaries := profiles.Summaries()

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No profiles enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tCOLOR\tCREATED")
	fmt.Fprintln(w, "--\t----\t-------\t-----\t-------")
	for _, p := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.SampleCount, p.Color, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d/%d profiles\n", len(summaries), profiles.MaxProfiles())
	return nil
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	profiles, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	deleted, err := profiles.Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if !deleted {
		return fmt.Errorf("profile %s not found", args[0])
	}

	fmt.Printf("Deleted profile %s (%d remaining)\n", args[0], profiles.Count())
	return nil
}

func runProfilesMigrate(cmd *cobra.Command, args []string) error {
	target := strings.ToLower(mustGetString(cmd, "to"))
	if target == "" {
		return errors.New("--to is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if target == cfg.Storage.Backend {
		return fmt.Errorf("source and target backend are both %s", target)
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source, closeSource, err := openPersistence(ctx, cfg, cfg.Storage.Backend, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	dest, closeDest, err := openPersistence(ctx, cfg, target, logger)
	if err != nil {
		return err
	}
	defer closeDest()

	loaded, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profiles from %s: %w", cfg.Storage.Backend, err)
	}
	if len(loaded) == 0 {
		fmt.Println("No profiles to migrate.")
		return nil
	}

	fmt.Printf("Migrating %d profiles from %s to %s\n", len(loaded), cfg.Storage.Backend, target)

	bar := progressbar.NewOptions(len(loaded),
		progressbar.OptionSetDescription("Preparing profiles"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("profiles"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	profiles := make([]store.Profile, 0, len(loaded))
	embeddings := 0
	for _, p := range loaded {
		if len(p.Embeddings) == 0 {
			return fmt.Errorf("profile %s has no embeddings", p.ID)
		}
		profiles = append(profiles, p.Clone())
		embeddings += len(p.Embeddings)
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	if err := dest.Save(ctx, profiles); err != nil {
		return fmt.Errorf("failed to save profiles to %s: %w", target, err)
	}

	fmt.Printf("Migrated %d profiles (%d embeddings) to %s\n", len(profiles), embeddings, target)
	return nil
}
