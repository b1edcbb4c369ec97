// Package buildinfo reports version data injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/docattest/internal/buildinfo.BuildVersion=v1.0.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PrintBuildData writes version, date and commit to w, using N/A for unset values.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(BuildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(BuildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(BuildCommit))
}
