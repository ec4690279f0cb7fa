package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/notchd/notchd/internal/dbusctl"
)

var statusOpts struct {
	waybar bool
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text       string `json:"text"`
	Alt        string `json:"alt,omitempty"`
	Tooltip    string `json:"tooltip,omitempty"`
	Class      string `json:"class,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show the daemon's current state.

With --waybar, output uses Waybar's custom module JSON format:

  "custom/notch": {
    "exec": "notchctl status --waybar",
    "interval": 5,
    "return-type": "json"
  }

The JSON output includes:
  - text: minutes remaining when an alert is live, otherwise empty
  - alt: the current alert phase
  - tooltip: the upcoming event title
  - class: CSS class based on the presence state`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.waybar, "waybar", false,
		"Output Waybar-compatible JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := client.GetStatus()
	if err != nil {
		if statusOpts.waybar {
			return outputStatus(WaybarStatus{Text: "", Alt: "error", Class: "error"})
		}
		return err
	}

	if statusOpts.waybar {
		return outputStatus(waybarFromStatus(st))
	}

	printStatus(st)
	return nil
}

// waybarFromStatus maps a daemon snapshot onto the Waybar JSON shape.
func waybarFromStatus(st dbusctl.Status) WaybarStatus {
	if !st.Enabled {
		return WaybarStatus{Text: "", Alt: "disabled", Class: "disabled"}
	}

	out := WaybarStatus{
		Alt:   st.Phase,
		Class: st.State,
	}
	if st.Phase != "none" && st.RemainingSeconds > 0 {
		minutes := (st.RemainingSeconds + 59) / 60
		out.Text = fmt.Sprintf("%dm", minutes)
		out.Tooltip = st.EventTitle
		out.Percentage = int(min(st.RemainingSeconds/9, 100))
	}
	return out
}

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(10)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))
	onStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// printStatus renders a human-readable status block.
func printStatus(st dbusctl.Status) {
	row := func(label, value string) {
		fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render(label), valueStyle.Render(value))
	}
	flag := func(v bool) string {
		if v {
			return onStyle.Render("yes")
		}
		return offStyle.Render("no")
	}

	row("enabled", flag(st.Enabled))
	row("visible", flag(st.Visible))
	if st.Screen != "" {
		row("screen", st.Screen)
	}
	row("state", st.State)
	row("phase", st.Phase)
	if st.Phase != "none" && st.EventTitle != "" {
		row("event", fmt.Sprintf("%s (in %ds)", st.EventTitle, st.RemainingSeconds))
	}
	row("media", flag(st.MediaPlaying))
	if st.NowPlaying != "" {
		row("playing", st.NowPlaying)
	}
	if !st.StartedAt.IsZero() {
		row("uptime", fmt.Sprintf("started %s", humanize.Time(st.StartedAt)))
	}
	if st.Version != "" {
		row("version", st.Version)
	}
}

// outputStatus writes the status as JSON.
func outputStatus(status WaybarStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(status)
}
