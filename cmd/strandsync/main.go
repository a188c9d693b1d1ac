package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"strandctl/internal/operator"
	"strandctl/internal/wave"
)

// errNoBoards drives the non-zero exit scripts key on when a scan
// comes up empty.
var errNoBoards = errors.New("no boards discovered")

func main() {
	root := &cobra.Command{
		Use:          "strandsync",
		Short:        "Discover strand boards on USB serial and broadcast synchronized starts",
		SilenceUsage: true,
	}
	root.AddCommand(
		portsCmd(),
		listCmd(),
		syncWaveCmd(),
		syncWaveAllCmd(),
		syncRow0Cmd(),
		syncStopCmd(),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List every serial port with its USB metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := operator.NewScanner().Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				pterm.Info.Println("No serial ports found.")
				return nil
			}
			data := [][]string{{"Port", "Product", "USB", "VID:PID", "Candidate"}}
			for _, p := range ports {
				id := "-"
				if p.IsUSB {
					id = p.VID + ":" + p.PID
				}
				data = append(data, []string{
					p.Name, p.Product, yesNo(p.IsUSB), id, yesNo(operator.IsBoardPort(p)),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

// discover runs the USB scan behind a spinner. An empty scan is an
// error so callers exit non-zero, the way scripted show starts expect.
func discover() ([]operator.Board, error) {
	spinner, _ := pterm.DefaultSpinner.Start("Scanning USB serial ports...")
	boards, err := operator.NewScanner().Discover()
	if err != nil {
		spinner.Fail(err.Error())
		return nil, err
	}
	if len(boards) == 0 {
		spinner.Fail("No boards answered (USB-only scan). Close any serial monitor and check `strandsync ports`.")
		return nil, errNoBoards
	}
	spinner.Success(fmt.Sprintf("Discovered %d board(s)", len(boards)))
	return boards, nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Discover boards and print their identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			boards, err := discover()
			if err != nil {
				return err
			}
			data := [][]string{{"Board", "Port", "FW", "Caps", "Description"}}
			for _, b := range boards {
				data = append(data, []string{b.ID, b.Port, b.FW, b.Caps, b.Desc})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

// broadcast discovers, filters and fires one command line at every
// target, echoing each board's replies. Per-board failures print as
// warnings; the rest of the fleet still gets the command.
func broadcast(line string, only []string) error {
	boards, err := discover()
	if err != nil {
		return err
	}
	boards = operator.Filter(boards, only)
	if len(boards) == 0 {
		pterm.Warning.Println("No matching boards for --only.")
		return errNoBoards
	}

	data := [][]string{{"Board", "Port", "Description"}}
	for _, b := range boards {
		data = append(data, []string{b.ID, b.Port, b.Desc})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Info.Printfln("Broadcasting: %s", line)

	for _, a := range operator.NewScanner().Broadcast(boards, line) {
		if a.Err != nil {
			pterm.Warning.Printfln("%s: %v", a.Board.ID, a.Err)
			continue
		}
		pterm.DefaultSection.Printfln("%s @ %s", a.Board.ID, a.Board.Port)
		for _, ln := range a.Lines {
			pterm.Println("  " + ln)
		}
	}
	return nil
}

func addOnly(cmd *cobra.Command, only *[]string) {
	cmd.Flags().StringSliceVar(only, "only", nil, "limit the broadcast to these board ids")
}

func syncWaveCmd() *cobra.Command {
	var mapID, delay, period, speed int
	var only []string
	cmd := &cobra.Command{
		Use:   "sync-wave",
		Short: "Arm one map's wave on every board: sync wave <map> <delay> [period] [speed]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return broadcast(operator.SyncWave(mapID, delay, period, speed), only)
		},
	}
	cmd.Flags().IntVar(&mapID, "map", 0, "logical map to start")
	_ = cmd.MarkFlagRequired("map")
	cmd.Flags().IntVar(&delay, "delay", 800, "milliseconds until every board fires")
	cmd.Flags().IntVar(&period, "period", wave.DefaultPeriod, "wave period in pixels")
	cmd.Flags().IntVar(&speed, "speed", wave.DefaultSpeed, "frame delay in milliseconds")
	addOnly(cmd, &only)
	return cmd
}

func syncWaveAllCmd() *cobra.Command {
	var delay, period, speed int
	var only []string
	cmd := &cobra.Command{
		Use:   "sync-waveall",
		Short: "Arm every map's wave on every board: sync waveall <delay> [period] [speed]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return broadcast(operator.SyncWaveAll(delay, period, speed), only)
		},
	}
	cmd.Flags().IntVar(&delay, "delay", 800, "milliseconds until every board fires")
	cmd.Flags().IntVar(&period, "period", wave.DefaultPeriod, "wave period in pixels")
	cmd.Flags().IntVar(&speed, "speed", wave.DefaultSpeed, "frame delay in milliseconds")
	addOnly(cmd, &only)
	return cmd
}

func syncRow0Cmd() *cobra.Command {
	var mapID, delay int
	var only []string
	cmd := &cobra.Command{
		Use:   "sync-row0",
		Short: "Arm a first-row draw on every board: sync row0 <map> <delay>",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return broadcast(operator.SyncRow0(mapID, delay), only)
		},
	}
	cmd.Flags().IntVar(&mapID, "map", 0, "logical map to draw")
	_ = cmd.MarkFlagRequired("map")
	cmd.Flags().IntVar(&delay, "delay", 800, "milliseconds until every board fires")
	addOnly(cmd, &only)
	return cmd
}

func syncStopCmd() *cobra.Command {
	var delay int
	var only []string
	cmd := &cobra.Command{
		Use:   "sync-stop",
		Short: "Arm a full stop on every board: sync stop <delay>",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return broadcast(operator.SyncStop(delay), only)
		},
	}
	cmd.Flags().IntVar(&delay, "delay", 200, "milliseconds until every board blanks")
	addOnly(cmd, &only)
	return cmd
}
