package main

import (
	"github.com/spf13/cobra"

	"codevolt/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards",
	Long:  "dashboard renders the GreptimeDB and Postgres Grafana dashboards using GREPTIMEDB_DATASOURCE_UID and POSTGRES_DATASOURCE_UID.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboard.Render(dashboardOut)
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
