package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/forest-guardian/fractional-cover/internal/engine"
)

// Out is where every helper writes. Tests swap it for a buffer.
var Out io.Writer = os.Stdout

var (
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)
	bannerColor  = color.New(color.FgCyan)
)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	warnColor.Fprintf(Out, "\nWarning:\n%s\n", message)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	errorColor.Fprintf(Out, "\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	successColor.Fprintf(Out, "\n%s\n", message)
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	infoColor.Fprintln(Out, message)
}

func PrintBanner() {
	bannerColor.Fprintln(Out, figure.NewFigure("Fractional", "isometric1", true).String())
	bannerColor.Fprintln(Out, figure.NewFigure("Cover", "isometric1", true).String())
	fmt.Fprintln(Out)
}

// PrintRunStats lists the counters and mean fractions of one run.
func PrintRunStats(s engine.RunStats) {
	PrintInfo(fmt.Sprintf("Pixels: %d (forest %d, non-forest %d)", s.Pixels, s.ForestPixels, s.NonForestPixels))
	PrintInfo(fmt.Sprintf("Solved: %d interior, %d on a boundary, %d by nearest endmember", s.Interior, s.Boundary, s.Fallback))
	PrintInfo(fmt.Sprintf("Undefined indexes: NDVI %d, SWIR32 %d", s.NDVISentinels, s.SWIR32Sentinels))
	PrintInfo(fmt.Sprintf("Mean fractions: PV %.4f, NPV %.4f, BS %.4f", s.Means[0], s.Means[1], s.Means[2]))
	PrintInfo(fmt.Sprintf("Endmember condition numbers: forest %.3g, non-forest %.3g", s.Conditions[1], s.Conditions[0]))
	PrintInfo(fmt.Sprintf("Blocks: %d on %d workers, indexes %s, unmixing %s", s.Blocks, s.Workers, s.IndexTime, s.UnmixTime))
}
