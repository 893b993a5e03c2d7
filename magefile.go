//go:build mage

package main

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	GotestsumUrl    = "gotest.tools/gotestsum"
	GolangciLintUrl = "github.com/golangci/golangci-lint/cmd/golangci-lint"
)

var (
	goexec = mg.GoCmd()
	g0     = sh.RunCmd(goexec)
)

// Build builds the streamjoin binary
func Build() error {
	fmt.Println("Building the binary...")
	return g0("build", "-o", "bin/streamjoin", "./cmd/streamjoin")
}

func mustRun(cmd string, args ...string) {
	out := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("\n> %s %s\n", cmd, strings.Join(args, " ")),
	)
	fmt.Println(out)
	if err := sh.RunV(cmd, args...); err != nil {
		panic(err)
	}
}

func checkTools() error {
	if _, err := exec.LookPath("gotestsum"); err != nil {
		fmt.Printf("Installing gotestsum from %s\n", GotestsumUrl)
		mustRun(goexec, "install", GotestsumUrl)
	}
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Printf("Installing golangci-lint from %s\n", GolangciLintUrl)
		mustRun(goexec, "install", GolangciLintUrl)
	}
	return nil
}

// Lint runs the linter
func Lint() error {
	mg.Deps(checkTools)
	return sh.RunV("golangci-lint", "run")
}

// Test runs the unit tests with the race detector
func Test() error {
	mg.Deps(checkTools)
	return sh.RunV("gotestsum", "-f", "standard-verbose", "--", "-race", "-failfast", "-count", "1", "-timeout", "10m", "./...")
}

// Scenarios runs every scenario under scenario/testdata and fails if any output differs from its expectations
func Scenarios() error {
	mg.Deps(Build)
	files, err := filepath.Glob("scenario/testdata/*.json5")
	if err != nil {
		return err
	}
	for _, f := range files {
		mustRun("bin/streamjoin", "run", "--config", "cfg/streamjoin.conf", "--scenario", f, "--check")
	}
	return nil
}

// Presubmit builds, lints, tests and runs the scenarios
func Presubmit() error {
	mg.Deps(Build, Lint, Test)
	return Scenarios()
}
