package common

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	ProjectName = "Crypto Backtest Lab"
	ProjectRepo = "github.com/ducminhle1904/crypto-backtest-lab"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/ducminhle1904/crypto-backtest-lab/cmd/common.Version=1.2.0"
var (
	Version     = "0.3.0"
	BuildDate   = "unknown"
	BuildCommit = "dev"
)

// VersionInfo contains version and build information
type VersionInfo struct {
	ProjectName  string `json:"project_name"`
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	BuildCommit  string `json:"build_commit"`
	GoVersion    string `json:"go_version"`
	Architecture string `json:"architecture"`
	Repository   string `json:"repository"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		ProjectName:  ProjectName,
		Version:      Version,
		BuildDate:    BuildDate,
		BuildCommit:  BuildCommit,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
		Repository:   ProjectRepo,
	}
}

// PrintVersion prints a three line version banner
func PrintVersion(appName string) {
	writeVersion(os.Stdout, appName)
}

func writeVersion(w io.Writer, appName string) {
	info := GetVersionInfo()
	fmt.Fprintf(w, "%s v%s\n", appName, info.Version)
	fmt.Fprintf(w, "Build: %s (%s)\n", info.BuildCommit, info.BuildDate)
	fmt.Fprintf(w, "Go: %s (%s)\n", info.GoVersion, info.Architecture)
}

// PrintDetailedVersion prints every build field as a table
func PrintDetailedVersion(appName string) {
	writeDetailedVersion(os.Stdout, appName)
}

func writeDetailedVersion(w io.Writer, appName string) {
	info := GetVersionInfo()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("VERSION INFORMATION")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Application", appName},
		{"Version", info.Version},
		{"Project", info.ProjectName},
		{"Repository", info.Repository},
		{"Build Date", info.BuildDate},
		{"Build Hash", info.BuildCommit},
		{"Go Version", info.GoVersion},
		{"Platform", info.Architecture},
	})
	t.Render()
}

func GetShortVersion() string {
	return Version
}

// GetFullVersion returns version-commit (date)
func GetFullVersion() string {
	return fmt.Sprintf("%s-%s (%s)", Version, BuildCommit, BuildDate)
}
