package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/fentz26/caretaker/internal/controlplane"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [account-id]",
	Short: "Show the running fleet, or one account's latest status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var decisionLimit int

func init() {
	statusCmd.Flags().IntVar(&decisionLimit, "decisions", 5, "Number of recent decisions to show for an account")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return showAccount(args[0])
	}

	health, err := CheckHealth()
	if err != nil && health == nil {
		return err
	}

	var fleet controlplane.FleetResponse
	if err := apiGetJSON("/fleet", &fleet); err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("caretaker " + health.Version))
	db := okStyle.Render(health.DB)
	if !health.OK {
		db = badStyle.Render(health.DB)
	}
	fmt.Println(field("Database", db))
	fmt.Println(field("Monitors", fmt.Sprintf("%d / %d", fleet.Stats.Running, fleet.Stats.MaxMonitors)))
	if fleet.Stats.Stopping > 0 {
		fmt.Println(field("Stopping", fmt.Sprintf("%d", fleet.Stats.Stopping)))
	}
	if !fleet.Stats.LastReconcile.IsZero() {
		fmt.Println(field("Reconciled", fleet.Stats.LastReconcile.Local().Format(time.DateTime)))
	}
	if fleet.Stats.LastError != "" {
		fmt.Println(field("Last error", badStyle.Render(fleet.Stats.LastError)))
	}

	if len(fleet.Monitors) == 0 {
		fmt.Println(sectionStyle.Render("No monitors running"))
		return nil
	}

	widths := []int{20, 10, 12}
	fmt.Println(sectionStyle.Render(row(widths, "ACCOUNT", "STATE", "UPTIME")))
	for _, m := range fleet.Monitors {
		uptime := time.Since(m.StartedAt).Truncate(time.Second).String()
		fmt.Println(row(widths, string(m.AccountID), stateStyle(m.State).Render(string(m.State)), uptime))
	}
	return nil
}

func showAccount(account string) error {
	base := "/accounts/" + url.PathEscape(account)

	fmt.Println(headerStyle.Render("Account " + account))

	var snap models.SnapshotRecord
	if err := apiGetJSON(base+"/snapshot", &snap); err != nil {
		fmt.Println(labelStyle.Render("No status recorded yet"))
	} else {
		s := snap.Snapshot
		fmt.Println(field("Captured", s.CapturedAt.Local().Format(time.DateTime)))
		fmt.Println(field("Energy", gauge(s.Energy)))
		fmt.Println(field("Clean", gauge(s.Cleanliness)))
		fmt.Println(field("Health", gauge(s.Health)))
		fmt.Println(field("Hunger", gauge(s.Satiety)))
		fmt.Println(field("Happiness", gauge(s.Mood)))
		fmt.Println(field("Sleeping", fmt.Sprintf("%t", s.Resting)))
		if s.Location != nil {
			fmt.Println(field("Room", string(*s.Location)))
		}
	}

	var decisions []models.DecisionRecord
	if err := apiGetJSON(fmt.Sprintf("%s/decisions?limit=%d", base, decisionLimit), &decisions); err != nil {
		return err
	}
	fmt.Println(sectionStyle.Render("Recent decisions"))
	widths := []int{20, 10, 8, 12}
	for _, d := range decisions {
		fmt.Println(row(widths,
			d.CreatedAt.Local().Format(time.DateTime),
			string(d.Action),
			urgencyStyle(d.Urgency).Render(string(d.Urgency)),
			d.Source,
		))
	}

	var errs []models.ErrorRecord
	if err := apiGetJSON(base+"/errors", &errs); err != nil {
		return err
	}
	if len(errs) > 0 {
		fmt.Println(sectionStyle.Render("Recent errors"))
		for _, e := range errs {
			fmt.Println(row([]int{20}, e.CreatedAt.Local().Format(time.DateTime), badStyle.Render(e.Message)))
		}
	}
	return nil
}
