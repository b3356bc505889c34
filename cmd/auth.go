package cmd

import (
	"fmt"
	"reposync/internal/config"
	"reposync/internal/remote"

	"github.com/spf13/cobra"
)

var (
	authUser  string
	authToken string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage credentials for the hosted account",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the account user and token in ~/.reposync/.env",
	RunE: func(cmd *cobra.Command, args []string) error {
		if authUser == "" || authToken == "" {
			return config.ErrMissingCredential
		}

		dir, err := config.Dir()
		if err != nil {
			return err
		}

		if err := config.SaveCredentials(dir, authUser, authToken); err != nil {
			return err
		}

		fmt.Println("credentials saved")
		return nil
	},
}

var authCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the stored credentials against the account API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GitHubUser == "" || cfg.GitHubToken == "" {
			return config.ErrMissingCredential
		}

		client, err := remote.New(cfg.APIURL, cfg.GitHubUser, cfg.GitHubToken)
		if err != nil {
			return err
		}

		repos, err := client.List(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("authenticated as %s, %d repositories visible\n", cfg.GitHubUser, len(repos))
		return nil
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&authUser, "user", "", "account user name")
	authLoginCmd.Flags().StringVar(&authToken, "token", "", "personal access token")
	authCmd.AddCommand(authLoginCmd, authCheckCmd)
	rootCmd.AddCommand(authCmd)
}
