package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
	"github.com/webitel/im-relay-service/internal/domain/model"
)

func topCmd() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Live dashboard of a running relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "http://localhost:8080",
				Usage: "Base URL of the relay HTTP surface",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: time.Second,
				Usage: "Refresh interval",
			},
		},
		Action: func(c *cli.Context) error {
			return runTop(c.Context, c.String("addr"), c.Duration("interval"))
		},
	}
}

// fetchStats reads the /stats snapshot from a relay.
func fetchStats(ctx context.Context, client *http.Client, addr string) (*model.HubStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/stats", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("top: fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("top: fetch stats: unexpected status %d", resp.StatusCode)
	}

	var stats model.HubStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("top: decode stats: %w", err)
	}
	return &stats, nil
}

// sessionRows renders the per-session table, busiest sessions first.
func sessionRows(stats *model.HubStats) [][]string {
	sessions := append([]model.SessionStats(nil), stats.Sessions...)
	sort.SliceStable(sessions, func(i, j int) bool {
		return total(sessions[i]) > total(sessions[j])
	})

	rows := [][]string{{"SESSION", "CONTROLLERS", "SATELLITES", "UNKNOWN"}}
	for _, s := range sessions {
		rows = append(rows, []string{
			s.SessionID,
			strconv.Itoa(s.Controllers),
			strconv.Itoa(s.Satellites),
			strconv.Itoa(s.Unknown),
		})
	}
	return rows
}

func total(s model.SessionStats) int {
	return s.Controllers + s.Satellites + s.Unknown
}

func summary(addr string, stats *model.HubStats) string {
	return fmt.Sprintf("%s\nsessions: %d  connections: %d  resident: %d  uptime: %s",
		addr, stats.ActiveSessions, stats.TotalConnections, stats.ResidentActors,
		stats.Uptime.Truncate(time.Second))
}

func runTop(ctx context.Context, addr string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("top: init terminal: %w", err)
	}
	defer ui.Close()

	header := widgets.NewParagraph()
	header.Title = "im-relay"
	table := widgets.NewTable()
	table.Title = "sessions"
	table.RowSeparator = false
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.RowStyles[0] = ui.NewStyle(ui.ColorYellow, ui.ColorClear, ui.ModifierBold)

	layout := func() {
		w, h := ui.TerminalDimensions()
		header.SetRect(0, 0, w, 4)
		table.SetRect(0, 4, w, h)
	}

	client := &http.Client{Timeout: interval}
	refresh := func() {
		stats, err := fetchStats(ctx, client, addr)
		if err != nil {
			header.Text = fmt.Sprintf("%s\n%v", addr, err)
			table.Rows = [][]string{{"SESSION", "CONTROLLERS", "SATELLITES", "UNKNOWN"}}
		} else {
			header.Text = summary(addr, stats)
			table.Rows = sessionRows(stats)
		}
		ui.Render(header, table)
	}

	layout()
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				ui.Clear()
				layout()
				ui.Render(header, table)
			}
		case <-ticker.C:
			refresh()
		}
	}
}
