package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/cv-matcher/internal/scoring"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the supported scorer backends",
	Run: func(_ *cobra.Command, _ []string) {
		printVersion(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s version: %s\n", app, resolvedVersion())
	fmt.Fprintf(w, "scorer backends: %s\n", strings.Join(backends(), ", "))
}

// resolvedVersion prefers the ldflags value and falls back to the module version of `go install` builds.
func resolvedVersion() string {
	if version != "unknown" && version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func backends() []string {
	return []string{scoring.BackendTfidf, backendHTTP, backendGemini, backendOpenAI}
}
