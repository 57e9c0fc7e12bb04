package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pulsewatch/internal/models"
	"github.com/spf13/cobra"
)

func addRuleCommands(rootCmd *cobra.Command) {
	var ruleCmd = &cobra.Command{
		Use:   "rule",
		Short: "Manage alert rules",
	}

	var enabledOnly bool
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *bool
			if cmd.Flags().Changed("enabled") {
				filter = &enabledOnly
			}
			rules, err := apiClient.ListRules(filter)
			if err != nil {
				return err
			}
			printRules(rules)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Filter by enabled status")

	var getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Get alert rule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rule, err := apiClient.GetRule(id)
			if err != nil {
				return err
			}
			printRule(rule)
			return nil
		},
	}

	var createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a new alert rule from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req map[string]interface{}
			if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
				return fmt.Errorf("invalid rule JSON: %w", err)
			}
			rule, err := apiClient.CreateRule(req)
			if err != nil {
				return err
			}
			fmt.Printf("Rule %d created\n", rule.ID)
			return nil
		},
	}

	var updateCmd = &cobra.Command{
		Use:   "update [id]",
		Short: "Update an alert rule from JSON on stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var req map[string]interface{}
			if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
				return fmt.Errorf("invalid rule JSON: %w", err)
			}
			if err := apiClient.UpdateRule(id, req); err != nil {
				return err
			}
			fmt.Println("Rule updated")
			return nil
		},
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.DeleteRule(id); err != nil {
				return err
			}
			fmt.Println("Rule deleted")
			return nil
		},
	}

	var enableCmd = &cobra.Command{
		Use:   "enable [id]",
		Short: "Enable an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.EnableRule(id); err != nil {
				return err
			}
			fmt.Println("Rule enabled")
			return nil
		},
	}

	var disableCmd = &cobra.Command{
		Use:   "disable [id]",
		Short: "Disable an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.DisableRule(id); err != nil {
				return err
			}
			fmt.Println("Rule disabled")
			return nil
		},
	}

	var importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import alert rules from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rules []models.Alert
			if err := json.NewDecoder(os.Stdin).Decode(&rules); err != nil {
				return fmt.Errorf("invalid rules JSON: %w", err)
			}
			if err := apiClient.ImportRules(rules); err != nil {
				return err
			}
			fmt.Printf("Imported %d rules\n", len(rules))
			return nil
		},
	}

	var exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export alert rules as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := apiClient.ExportRules()
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(rules)
		},
	}

	ruleCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd,
		enableCmd, disableCmd, importCmd, exportCmd)
	rootCmd.AddCommand(ruleCmd)
}

func addAlertCommands(rootCmd *cobra.Command) {
	var alertCmd = &cobra.Command{
		Use:   "alerts",
		Short: "List and acknowledge firing alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := apiClient.ListAlerts()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tSEVERITY\tNAME\tMETRIC\tSTATUS\tTRIGGERED\t")
			for _, a := range alerts {
				triggered := ""
				if a.TriggeredAt != nil {
					triggered = a.TriggeredAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
					a.ID, a.Severity, a.Name, a.MetricType, a.Status, triggered)
			}
			return w.Flush()
		},
	}

	var actor string
	var ackCmd = &cobra.Command{
		Use:   "acknowledge [id]",
		Short: "Acknowledge a firing alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.AcknowledgeAlert(id, actor); err != nil {
				return err
			}
			fmt.Println("Alert acknowledged")
			return nil
		},
	}
	ackCmd.Flags().StringVar(&actor, "actor", "", "Who is acknowledging the alert")

	alertCmd.AddCommand(ackCmd)
	rootCmd.AddCommand(alertCmd)
}

func addProjectCommands(rootCmd *cobra.Command) {
	var projectCmd = &cobra.Command{
		Use:   "projects",
		Short: "List and create projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := apiClient.ListProjects()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\t")
			for _, p := range projects {
				fmt.Fprintf(w, "%d\t%s\t%s\t\n", p.ID, p.Name, p.Description)
			}
			return w.Flush()
		},
	}

	var description string
	var createCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := apiClient.CreateProject(args[0], description)
			if err != nil {
				return err
			}
			fmt.Printf("Project %d created\n", project.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "Project description")

	projectCmd.AddCommand(createCmd)
	rootCmd.AddCommand(projectCmd)
}

func addMetricCommands(rootCmd *cobra.Command) {
	var unit string
	var pushCmd = &cobra.Command{
		Use:   "push [project-id] [metric-type] [value]",
		Short: "Push a metric sample",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid value: %w", err)
			}
			sample := &models.MetricSample{
				ProjectID:  projectID,
				MetricType: args[1],
				Value:      value,
				Unit:       unit,
				Timestamp:  time.Now(),
			}
			if err := apiClient.PushSample(sample); err != nil {
				return err
			}
			fmt.Println("Sample recorded")
			return nil
		},
	}
	pushCmd.Flags().StringVar(&unit, "unit", "", "Sample unit")
	rootCmd.AddCommand(pushCmd)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func printRules(rules []models.Alert) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
	fmt.Fprintln(w, "ID\tNAME\tMETRIC\tCONDITION\tTHRESHOLD\tDURATION\tSEVERITY\tENABLED\t")
	for _, rule := range rules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%ds\t%s\t%v\t\n",
			rule.ID, rule.Name, rule.MetricType, rule.Condition,
			rule.Threshold, rule.DurationSeconds, rule.Severity, rule.Enabled)
	}
	w.Flush()
}

func printRule(rule *models.Alert) {
	fmt.Printf("ID:          %d\n", rule.ID)
	fmt.Printf("Project:     %d\n", rule.ProjectID)
	fmt.Printf("Name:        %s\n", rule.Name)
	fmt.Printf("Description: %s\n", rule.Description)
	fmt.Printf("Metric:      %s\n", rule.MetricType)
	fmt.Printf("Condition:   %s\n", rule.Condition)
	fmt.Printf("Threshold:   %.2f\n", rule.Threshold)
	fmt.Printf("Duration:    %d seconds\n", rule.DurationSeconds)
	fmt.Printf("Cooldown:    %d minutes\n", rule.CooldownMinutes)
	fmt.Printf("Severity:    %s\n", rule.Severity)
	fmt.Printf("Status:      %s\n", rule.Status)
	fmt.Printf("Enabled:     %v\n", rule.Enabled)
	if len(rule.NotificationChannels) > 0 {
		fmt.Printf("Channels:    %s\n", strings.Join(rule.NotificationChannels, ", "))
	}
	fmt.Printf("Created At:  %s\n", rule.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated At:  %s\n", rule.UpdatedAt.Format(time.RFC3339))
}
