package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/inboxd/internal/db"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"github.com/zulandar/inboxd/internal/tenant"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant policy commands",
	}
	cmd.AddCommand(newTenantSetWeightsCmd())
	return cmd
}

func newTenantSetWeightsCmd() *cobra.Command {
	var (
		configPath string
		tenantID   string
		alpha      float64
		beta       float64
	)

	cmd := &cobra.Command{
		Use:   "set-weights",
		Short: "Set a tenant's priority weights",
		Long:  "Sets alpha (message volume weight) and/or beta (waiting time weight). Omitted weights keep their current value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var u tenant.WeightsUpdate
			if cmd.Flags().Changed("alpha") {
				u.Alpha = &alpha
			}
			if cmd.Flags().Changed("beta") {
				u.Beta = &beta
			}
			if u.Empty() {
				return fmt.Errorf("at least one of --alpha or --beta is required")
			}
			_, gormDB, err := openStore(configPath)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			p, err := tenant.UpsertWeights(gormDB, tenantID, u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s: alpha=%g beta=%g\n", p.TenantID, p.Alpha, p.Beta)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to inboxd config file")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID (required)")
	cmd.Flags().Float64Var(&alpha, "alpha", 1.0, "message volume weight")
	cmd.Flags().Float64Var(&beta, "beta", 1.0, "waiting time weight")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Operator management commands",
	}
	cmd.AddCommand(newOperatorCreateCmd())
	return cmd
}

func newOperatorCreateCmd() *cobra.Command {
	var (
		configPath string
		tenantID   string
		roleFlag   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operator",
		Long:  "Creates an operator in a tenant with the given role (OPERATOR, MANAGER or ADMIN). New operators start OFFLINE.",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := models.ParseOperatorRole(roleFlag)
			if err != nil {
				return err
			}
			_, gormDB, err := openStore(configPath)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			op, err := operator.Create(gormDB, tenantID, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created operator %s (%s) in tenant %s\n", op.ID, op.Role, op.TenantID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to inboxd config file")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&roleFlag, "role", string(models.RoleOperator), "OPERATOR, MANAGER or ADMIN")
	cmd.MarkFlagRequired("tenant")
	return cmd
}
