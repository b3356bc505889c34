package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"reposync/internal/autostart"

	"github.com/spf13/cobra"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the watch daemon at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		as := autostart.New()

		installed, err := as.IsInstalled()
		if err != nil {
			return err
		}
		if installed && !installForce {
			fmt.Println("reposync autostart already installed, use --force to rewrite it")
			return nil
		}

		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}

		if err := as.Install(execPath); err != nil {
			return err
		}

		fmt.Printf("reposync autostart installed (%s watch)\n", execPath)
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "reinstall even if already registered")
	rootCmd.AddCommand(installCmd)
}
