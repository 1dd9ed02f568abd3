package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
	"github.com/forest-guardian/fractional-cover/internal/delivery"
	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/notification"
	"github.com/forest-guardian/fractional-cover/internal/properties"
	"github.com/forest-guardian/fractional-cover/internal/raster"
	"github.com/forest-guardian/fractional-cover/internal/ui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func loadEnv() {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			ui.PrintWarning("No .env file found, using the process environment.")
		}
	}
}

func presetPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return properties.EndmemberPresetPath()
}

func workers(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return properties.Workers()
}

// reportFailure forwards err to the error webhook and tags it with its
// category for the final message printed by main.
func reportFailure(action string, err error) error {
	if nerr := notification.SendDiscordErrorNotification(fmt.Sprintf("Fractional cover CLI\n\n%s failed: %s", action, err.Error())); nerr != nil {
		ui.PrintWarning(fmt.Sprintf("Failed to send notification: %s", nerr.Error()))
	}
	return fmt.Errorf("%s failed (%s): %w", action, failure.Kind(err), err)
}

func newUnmixCommand() *cobra.Command {
	var req delivery.Request
	var preset string

	cmd := &cobra.Command{
		Use:   "unmix",
		Short: "Unmix one scene into PV, NPV and BS fractions",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.PresetPath = presetPath(preset)
			req.Workers = workers(req.Workers)
			req.ShowProgress = true

			ui.PrintInfo(fmt.Sprintf("Unmixing %s with land cover %s", req.ScenePath, req.LandCoverPath))
			summary, err := delivery.ExecuteUnmixing(cmd.Context(), req)
			if err != nil {
				return reportFailure("Unmixing "+req.ScenePath, err)
			}

			for _, w := range summary.Warnings {
				ui.PrintWarning(w)
			}
			ui.PrintInfo(fmt.Sprintf("SWIR32 formula: %s", summary.Formula))
			ui.PrintRunStats(summary.RunStats)
			ui.PrintSuccess(fmt.Sprintf("Fractions written to %s", summary.Output))
			ui.PrintInfo(fmt.Sprintf("Statistics: %s", summary.StatsPath))
			if summary.PreviewPath != "" {
				ui.PrintInfo(fmt.Sprintf("Preview: %s", summary.PreviewPath))
			}
			notification.SendDiscordSuccessNotification(fmt.Sprintf("Fractional cover CLI\n\nScene %s unmixed.\nResult located at: %s", req.ScenePath, summary.Output))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.ScenePath, "scene", "", "multi-band scene GeoTIFF")
	f.StringVar(&req.LandCoverPath, "land-cover", "", "land-cover GeoTIFF aligned with the scene")
	f.StringVar(&req.OutputPath, "output", "", "output GeoTIFF (default ROOT_PATH/data/result/<scene>_fractions.tif)")
	f.StringVar(&req.ForestCodes, "forest-codes", "", `comma separated forest class codes, e.g. "1,2"`)
	f.IntVar(&req.Roles.Red, "red", 0, "1-based Red band number")
	f.IntVar(&req.Roles.NIR, "nir", 0, "1-based NIR band number")
	f.IntVar(&req.Roles.SWIR2, "swir2", 0, "1-based SWIR2 band number")
	f.IntVar(&req.Roles.SWIR3, "swir3", 0, "1-based SWIR3 band number")
	f.StringVar(&preset, "preset", "", "endmember preset YAML (default ENDMEMBER_PRESET or built-in)")
	f.IntVar(&req.Workers, "workers", 0, "row-block workers (default UNMIX_WORKERS or half the CPUs)")
	f.BoolVar(&req.Preview, "preview", false, "also write a PNG preview")
	for _, name := range []string{"scene", "land-cover", "forest-codes", "red", "nir", "swir2", "swir3"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newBatchCommand() *cobra.Command {
	var opts delivery.BatchOptions
	var manifest, preset string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Unmix every scene listed in a CSV manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PresetPath = presetPath(preset)
			opts.Workers = workers(opts.Workers)

			report, err := delivery.RunBatch(cmd.Context(), manifest, opts)
			if err != nil {
				return reportFailure("Batch "+manifest, err)
			}
			for _, s := range report.Completed {
				ui.PrintInfo(fmt.Sprintf("- %s -> %s (SWIR32 %s)", s.Scene, s.Output, s.Formula))
				for _, w := range s.Warnings {
					ui.PrintWarning(fmt.Sprintf("%s: %s", s.Scene, w))
				}
			}
			for _, s := range report.Cached {
				ui.PrintInfo(fmt.Sprintf("- %s unchanged, kept %s", s.Scene, s.Output))
			}
			for _, f := range report.Failed {
				ui.PrintError(fmt.Sprintf("%s: %s", f.Scene, f.Err.Error()))
			}
			ui.PrintSuccess(fmt.Sprintf("Batch finished: %d unmixed, %d unchanged, %d failed",
				len(report.Completed), len(report.Cached), len(report.Failed)))
			notification.SendDiscordSuccessNotification(fmt.Sprintf("Fractional cover CLI\n\nBatch %s finished: %d unmixed, %d unchanged, %d failed",
				manifest, len(report.Completed), len(report.Cached), len(report.Failed)))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&manifest, "manifest", "", "CSV manifest of scenes")
	f.StringVar(&preset, "preset", "", "endmember preset YAML (default ENDMEMBER_PRESET or built-in)")
	f.IntVar(&opts.Concurrency, "concurrency", 1, "scenes processed at once")
	f.IntVar(&opts.Workers, "workers", 0, "row-block workers per scene")
	f.BoolVar(&opts.Preview, "preview", false, "also write PNG previews")
	f.BoolVar(&opts.NoCache, "no-cache", false, "unmix scenes even when unchanged")
	cmd.MarkFlagRequired("manifest")
	return cmd
}

func newClassesCommand() *cobra.Command {
	var landCover string
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the land-cover codes present in a raster",
		RunE: func(cmd *cobra.Command, args []string) error {
			classes, _, err := raster.ReadLandCover(landCover)
			if err != nil {
				return reportFailure("Reading "+landCover, err)
			}
			codes := raster.UniqueClasses(classes)
			parts := make([]string, len(codes))
			for i, c := range codes {
				parts[i] = fmt.Sprint(c)
			}
			ui.PrintSuccess(fmt.Sprintf("Detected land-cover codes: %s", strings.Join(parts, ", ")))
			return nil
		},
	}
	cmd.Flags().StringVar(&landCover, "land-cover", "", "land-cover GeoTIFF")
	cmd.MarkFlagRequired("land-cover")
	return cmd
}

func newBandsCommand() *cobra.Command {
	var scene string
	cmd := &cobra.Command{
		Use:   "bands",
		Short: "List the bands of a scene to pick the --red/--nir/--swir2/--swir3 numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := raster.DescribeBands(scene)
			if err != nil {
				return reportFailure("Reading "+scene, err)
			}
			for _, b := range infos {
				ui.PrintInfo(fmt.Sprintf("Band %d: %s (%s)", b.Number, b.Description, b.DataType))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "multi-band scene GeoTIFF")
	cmd.MarkFlagRequired("scene")
	return cmd
}

func newPresetCommand() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Print the endmember preset in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := endmember.LoadPreset(presetPath(preset))
			if err != nil {
				return reportFailure("Loading preset", err)
			}
			fmt.Print(p.AsYaml())
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "endmember preset YAML")
	return cmd
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fractional-cover",
		Short:         "Per-pixel PV / NPV / BS fractional cover from NDVI and SWIR32",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnv()
			ui.PrintBanner()
		},
	}
	root.AddCommand(newUnmixCommand(), newBatchCommand(), newClassesCommand(), newBandsCommand(), newPresetCommand())
	return root
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			pc, file, line, ok := runtime.Caller(3)
			location := "Unknown location"
			if ok {
				location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
			}
			color.Red("\nPANIC: %v\nLocation: %s\nExiting...", r, location)

			errMessage := fmt.Sprintf("Fractional cover CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
			if err := notification.SendDiscordErrorNotification(errMessage); err != nil {
				color.Red("Failed to send notification: %s", err.Error())
			}
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
