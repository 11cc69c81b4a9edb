package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/internal/config"
	"github.com/telhawk-systems/linehawk/cli/pkg/output"
)

var (
	profileServer  string
	profileFactory string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
}

var profileSetCmd = &cobra.Command{
	Use:     "set <name>",
	Short:   "Create or replace a profile and make it current",
	Args:    cobra.ExactArgs(1),
	Example: `  lhawk profile set plant --server-url http://ingest.plant:8080 --factory F01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := profileServer
		if server == "" {
			server = config.DefaultServerURL
		}
		if err := cfg.SaveProfile(args[0], &config.Profile{ServerURL: server, FactoryID: profileFactory}); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Profile '%s' saved (server %s)", args[0], server)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.Print(outputFormat, cfg, func() {
			names := cfg.ProfileNames()
			if len(names) == 0 {
				output.Info("No profiles configured; using %s", config.DefaultServerURL)
				return
			}
			table := output.NewTable([]string{"", "NAME", "SERVER", "FACTORY"})
			for _, name := range names {
				p := cfg.Profiles[name]
				marker := ""
				if name == cfg.CurrentProfile {
					marker = "*"
				}
				table.AddRow([]string{marker, name, p.ServerURL, p.FactoryID})
			}
			table.Render()
		})
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.UseProfile(args[0]); err != nil {
			return err
		}
		output.Success("Now using profile '%s'", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Profile '%s' removed", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileListCmd, profileUseCmd, profileRemoveCmd)

	profileSetCmd.Flags().StringVar(&profileServer, "server-url", "", "ingest service URL")
	profileSetCmd.Flags().StringVar(&profileFactory, "factory", "", "default factory ID")
}
