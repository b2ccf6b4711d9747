package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/recommendation-writer/internal/config"
	"github.com/jonathan/recommendation-writer/internal/server"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token that lets a caller act for one developer",
	RunE: func(cmd *cobra.Command, args []string) error {
		jwtConfig, err := config.NewJWTConfig()
		if err != nil {
			return err
		}
		token, err := server.NewJWTService(jwtConfig).GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "Developer the token is bound to")
	if err := tokenCmd.MarkFlagRequired("subject"); err != nil {
		panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
	}
	rootCmd.AddCommand(tokenCmd)
}
