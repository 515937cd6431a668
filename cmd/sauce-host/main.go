// sauce-host is the operator-facing CLI: it compiles a drawing (a set
// of polylines) into an .ssg toolpath file, and streams an .ssg file
// to a controller over WebSocket or serial with progress reporting.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"saucecnc/host/compiler"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "sauce-host",
	Short:   "Sauce plotter host tools",
	Long:    "sauce-host compiles drawings into SSG toolpaths and streams them to a controller over WebSocket or serial.",
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	})
	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newStreamCmd())
}

// drawingFile is the on-disk JSON shape a drawing is authored in,
// before compilation to SSG.
type drawingFile struct {
	PlateRadiusMM float64 `json:"plate_radius_mm"`
	SoftLimits    struct {
		XMin float64 `json:"x_min"`
		XMax float64 `json:"x_max"`
		YMin float64 `json:"y_min"`
		YMax float64 `json:"y_max"`
	} `json:"soft_limits"`
	RapidFeedMM float64 `json:"rapid_feed_mm_min"`
	Polylines   []struct {
		Points []struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"points"`
		FlowDuty int     `json:"flow_duty"`
		FeedRate float64 `json:"feed_rate"`
	} `json:"polylines"`
}

func (d drawingFile) toDrawing() compiler.Drawing {
	out := compiler.Drawing{
		PlateRadiusMM: d.PlateRadiusMM,
		SoftLimits: compiler.Limits{
			XMin: d.SoftLimits.XMin, XMax: d.SoftLimits.XMax,
			YMin: d.SoftLimits.YMin, YMax: d.SoftLimits.YMax,
		},
		RapidFeedMM: d.RapidFeedMM,
	}
	for _, p := range d.Polylines {
		poly := compiler.Polyline{FlowDuty: p.FlowDuty, FeedRate: p.FeedRate}
		for _, pt := range p.Points {
			poly.Points = append(poly.Points, compiler.Point{X: pt.X, Y: pt.Y})
		}
		out.Polylines = append(out.Polylines, poly)
	}
	return out
}

func newCompileCmd() *cobra.Command {
	var outPath string
	var noSimplify, noPark bool
	var epsilon float64

	cmd := &cobra.Command{
		Use:   "compile <drawing.json>",
		Short: "Compile a drawing into an SSG toolpath file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read drawing: %w", err)
			}
			var df drawingFile
			if err := json.Unmarshal(data, &df); err != nil {
				return fmt.Errorf("parse drawing: %w", err)
			}

			opts := compiler.DefaultOptions()
			if noSimplify {
				opts.Simplify = false
			}
			if epsilon > 0 {
				opts.SimplifyEpsilon = epsilon
			}
			if noPark {
				opts.Park = false
			}

			lines, err := compiler.Compile(df.toDrawing(), opts)
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			out := outPath
			if out == "" {
				out = strings.TrimSuffix(args[0], ".json") + ".ssg"
			}
			if err := os.WriteFile(out, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
				return fmt.Errorf("write ssg: %w", err)
			}

			log.Info().Str("output", out).Int("lines", len(lines)).Msg("compiled drawing")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output .ssg path (default: input path with .ssg extension)")
	cmd.Flags().BoolVar(&noSimplify, "no-simplify", false, "Disable RDP simplification")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0, "RDP simplification epsilon in mm (default from compiler)")
	cmd.Flags().BoolVar(&noPark, "no-park", false, "Skip the final park move to X0 Y0")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var url, port string
	var baud int
	var homeFirst, resume bool

	cmd := &cobra.Command{
		Use:   "stream <file.ssg>",
		Short: "Stream an SSG file to a controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLines(args[0])
			if err != nil {
				return fmt.Errorf("read ssg: %w", err)
			}
			return runStream(args[0], lines, url, port, baud, homeFirst, resume)
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "Controller WebSocket URL (ws:// or wss://)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Controller serial device path")
	cmd.Flags().IntVarP(&baud, "baud", "b", 0, "Serial baud rate (serial only; default transportserial.DefaultBaud)")
	cmd.Flags().BoolVar(&homeFirst, "home-first", false, "Send N0 G28 before streaming, then wait a fixed 10s (the home reply is not awaited)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume from the controller's last_ack instead of streaming from the start")
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("sauce-host failed")
		os.Exit(1)
	}
}
