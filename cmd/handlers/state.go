package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"bizplan/internal/config"
	"bizplan/internal/core"
	"bizplan/internal/logger"
	"bizplan/internal/states"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewStateCmd creates the saved-state command
func NewStateCmd() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Save, list and delete business-plan states",
		Long: `Keep business-plan states between sessions. A saved state is a YAML
profile, including research and custom prompts, stored under the data
directory; "state show" prints it back so it can be passed to generate.`,
	}

	stateCmd.AddCommand(newStateSaveCmd())
	stateCmd.AddCommand(newStateListCmd())
	stateCmd.AddCommand(newStateShowCmd())
	stateCmd.AddCommand(newStateDeleteCmd())

	return stateCmd
}

func newStateSaveCmd() *cobra.Command {
	var (
		name   string
		backup bool
	)
	cmd := &cobra.Command{
		Use:   "save <profile.yaml>",
		Short: "Save a profile as a named state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := core.LoadState(args[0])
			if err != nil {
				return err
			}
			saved, err := saveState(stateStore(config.Get()), state, name, backup)
			if err != nil {
				return err
			}
			color.Green("✓ State saved as %s", saved)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "state name (default: company name and timestamp)")
	cmd.Flags().BoolVar(&backup, "backup", false, "back up the existing state before overwriting it")
	return cmd
}

// saveState writes state, first backing up a state already saved under name
// when backup is set.
func saveState(s *states.Store, state core.SectionState, name string, backup bool) (string, error) {
	if backup && name != "" {
		previous, err := s.Load(name)
		switch {
		case err == nil:
			backupName, err := s.Backup(previous)
			if err != nil {
				return "", fmt.Errorf("failed to back up %s: %w", name, err)
			}
			logger.Info("Previous state backed up", "name", name, "backup", backupName)
		case !errors.Is(err, states.ErrNotFound):
			return "", err
		}
	}
	return s.Save(state, name)
}

func newStateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved states",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runStateList(); err != nil {
				logger.Error("Failed to list states", err)
				os.Exit(1)
			}
		},
	}
}

func runStateList() error {
	s := stateStore(config.Get())
	infos, err := s.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		color.Yellow("No saved states in %s.", s.Dir())
		return nil
	}

	fmt.Printf("%-40s %-25s %-17s %9s\n", "NAME", "COMPANY", "MODIFIED", "SIZE")
	for _, info := range infos {
		name := info.Name
		if info.HasResearch {
			name += " 🔍"
		}
		line := fmt.Sprintf("%-40s %-25s %-17s %9s", name, info.CompanyName,
			info.Modified.Format("2006-01-02 15:04"), formatBytes(info.Size))
		if info.Backup {
			color.HiBlack("%s", line)
			continue
		}
		fmt.Println(line)
	}
	return nil
}

func newStateShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved state as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := stateStore(config.Get()).Load(args[0])
			if err != nil {
				return err
			}
			if output != "" {
				if err := writeYAML(output, state); err != nil {
					return err
				}
				color.Green("✓ State written to %s", output)
				return nil
			}
			return printYAML(state)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the state to this file")
	return cmd
}

func newStateDeleteCmd() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved state",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runStateDelete(args[0], confirm); err != nil {
				logger.Error("Failed to delete state", err)
				os.Exit(1)
			}
		},
	}

	deleteCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return deleteCmd
}

func runStateDelete(name string, confirm bool) error {
	s := stateStore(config.Get())

	if !confirm {
		fmt.Printf("This will delete the saved state %s from %s.\n", name, s.Dir())
		fmt.Print("Continue? [y/N]: ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Delete cancelled.")
			return nil
		}
	}

	if err := s.Delete(name); err != nil {
		return err
	}
	color.Green("✓ State %s deleted", name)
	return nil
}
