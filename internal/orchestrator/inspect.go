package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Inspect fetches the current placement and renders one row per hosted
// application, followed by the attached session count.
func Inspect(ctx context.Context, w io.Writer, client *Client) error {
	dcs, err := client.DataCenters(ctx)
	if err != nil {
		return fmt.Errorf("fetch edge data centers: %w", err)
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"EDC", "Name", "X", "Y", "App", "Total Uses"})

	for _, dc := range dcs {
		apps, err := client.Applications(ctx, dc.ID)
		if err != nil {
			return fmt.Errorf("fetch applications of edc %d: %w", dc.ID, err)
		}
		if len(apps) == 0 {
			table.Append([]string{
				strconv.FormatUint(uint64(dc.ID), 10),
				dc.Name,
				fmt.Sprintf("%.1f", dc.X),
				fmt.Sprintf("%.1f", dc.Y),
				"-",
				"-",
			})
			continue
		}
		for _, app := range apps {
			total, err := client.TotalUses(ctx, dc.ID, app.ID)
			if err != nil {
				return fmt.Errorf("fetch total uses of application %d: %w", app.ID, err)
			}
			table.Append([]string{
				strconv.FormatUint(uint64(dc.ID), 10),
				dc.Name,
				fmt.Sprintf("%.1f", dc.X),
				fmt.Sprintf("%.1f", dc.Y),
				strconv.FormatUint(uint64(app.ID), 10),
				strconv.FormatUint(uint64(total), 10),
			})
		}
	}
	table.Render()

	sessions, err := client.ConnectedUsers(ctx)
	if err != nil {
		return fmt.Errorf("fetch connected users: %w", err)
	}
	fmt.Fprintf(w, "connected users: %d\n", len(sessions))
	return nil
}
