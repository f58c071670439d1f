//go:build ignore

// build.go - evdash build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, evdash, evreport, test, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	module         = "evdash"
	versionPackage = module + "/pkg/contracts"
)

var (
	distDir = "dist"

	// commands under cmd/ that produce a binary
	executables = []string{"evdash", "evreport"}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	version := flag.String("version", "", "Version stamped into the binaries (default from pkg/contracts)")
	flag.Parse()

	printHeader()
	start := time.Now()

	var err error
	switch *target {
	case "all":
		for _, name := range executables {
			if err = buildExecutable(name, *version, *verbose); err != nil {
				break
			}
		}
	case "evdash", "evreport":
		err = buildExecutable(*target, *version, *verbose)
	case "test":
		err = runTests(*verbose)
	case "clean":
		err = os.RemoveAll(distDir)
	case "help":
		showHelp()
		return
	default:
		printError(fmt.Sprintf("Unknown target: %s", *target))
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Target %q completed in %s", *target, time.Since(start).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "========================================" + colorReset)
	fmt.Println(colorCyan + "        evdash - Build System           " + colorReset)
	fmt.Println(colorCyan + "========================================" + colorReset)
}

func printInfo(msg string) {
	fmt.Println(colorYellow + "[INFO] " + colorReset + msg)
}

func printSuccess(msg string) {
	fmt.Println(colorGreen + "[OK] " + colorReset + msg)
}

func printError(msg string) {
	fmt.Println(colorRed + "[ERROR] " + colorReset + msg)
}

func buildExecutable(name, version string, verbose bool) error {
	printInfo(fmt.Sprintf("Building %s...", name))

	output := filepath.Join(distDir, name)
	if runtime.GOOS == "windows" {
		output += ".exe"
	}
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", distDir, err)
	}

	ldflags := []string{
		"-s", "-w",
		fmt.Sprintf("-X %s.BuildTime=%s", versionPackage, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s.GitCommit=%s", versionPackage, gitCommit()),
	}
	if version != "" {
		ldflags = append(ldflags, fmt.Sprintf("-X %s.Version=%s", versionPackage, version))
	}

	args := []string{"build", "-ldflags", strings.Join(ldflags, " "), "-o", output}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./cmd/"+name)

	if err := run(verbose, "go", args...); err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}
	printSuccess(fmt.Sprintf("Built %s", output))
	return nil
}

func runTests(verbose bool) error {
	printInfo("Running tests...")
	args := []string{"test", "-race", "./..."}
	if verbose {
		args = append(args, "-v")
	}
	return run(true, "go", args...)
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func run(verbose bool, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	if verbose {
		cmd.Stdout = os.Stdout
		printInfo(name + " " + strings.Join(args, " "))
	}
	return cmd.Run()
}

func showHelp() {
	fmt.Println("\nUsage: go run build.go -target=TARGET")
	fmt.Println("\nTargets:")
	fmt.Println("  all        Build evdash and evreport (default)")
	fmt.Println("  evdash     Build the dashboard server")
	fmt.Println("  evreport   Build the one-shot report CLI")
	fmt.Println("  test       Run all tests with the race detector")
	fmt.Println("  clean      Remove the dist directory")
}
