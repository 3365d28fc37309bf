package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sweeney/glade/internal/config"
	"github.com/sweeney/glade/internal/eeprom"
	"github.com/sweeney/glade/internal/schedule"
	"github.com/sweeney/glade/internal/settings"
)

func newSettingsCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the persisted schedule and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := afero.NewReadOnlyFs(afero.NewOsFs())
			return printSettings(cmd.OutOrStdout(), fsys, opts.EEPROM)
		},
	}
}

// printSettings reads the settings image without modifying it. A missing
// or corrupt record is reported and the defaults are shown instead.
func printSettings(w io.Writer, fsys afero.Fs, o config.EEPROMOptions) error {
	medium, err := eeprom.OpenFile(fsys, o.Path, o.Size)
	if err != nil {
		return err
	}

	source := o.Path
	sch, err := settings.NewStore(medium).Load()
	switch {
	case errors.Is(err, settings.ErrNoRecord):
		source = "defaults (no valid record in " + o.Path + ")"
		sch = schedule.Default()
	case err != nil:
		return err
	}

	fmt.Fprintln(w, scheduleTable(source, sch))
	return nil
}

func scheduleTable(source string, sch schedule.Schedule) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true

	table.AddRow("SOURCE:", source)
	table.AddRow("ACTIVE:", sch.Active)
	table.AddRow("INTERVAL:", fmt.Sprintf("%ds", sch.Interval))
	table.AddRow("DAYS:", enabledDays(sch.Days))
	table.AddRow("HOURS:", enabledHours(sch.Hours))
	return table
}

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func enabledDays(days [7]bool) string {
	var names []string
	for i, on := range days {
		if on {
			names = append(names, weekdayNames[i])
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}

// enabledHours lists enabled hours as ranges, e.g. "08-21".
func enabledHours(hours [24]bool) string {
	var ranges []string
	for h := 0; h < 24; h++ {
		if !hours[h] {
			continue
		}
		start := h
		for h+1 < 24 && hours[h+1] {
			h++
		}
		if start == h {
			ranges = append(ranges, fmt.Sprintf("%02d", start))
		} else {
			ranges = append(ranges, fmt.Sprintf("%02d-%02d", start, h))
		}
	}
	if len(ranges) == 0 {
		return "none"
	}
	return strings.Join(ranges, " ")
}
