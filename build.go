//go:build ignore

// build.go - EMS Inventory build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, web, simulator, processor, inventory-report, pipeline, test, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const (
	version = "0.1.0"
	module  = "emsinv"
	distDir = "dist"
)

// commands maps each cmd/ directory to its binary name
var commands = map[string]string{
	"web":              "ems-web",
	"simulator":        "ems-simulator",
	"processor":        "ems-processor",
	"inventory-report": "ems-inventory-report",
	"pipeline":         "ems-pipeline",
}

var (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	fmt.Println(colorCyan + "=== EMS Inventory - Build System ===" + colorReset)
	start := time.Now()

	var err error
	switch *target {
	case "all":
		err = buildAll(*verbose)
	case "test":
		err = run(*verbose, "go", "test", "./...")
	case "clean":
		err = os.RemoveAll(distDir)
	default:
		if _, ok := commands[*target]; !ok {
			showHelp()
			os.Exit(1)
		}
		err = buildCommand(*target, *verbose)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(start).Round(time.Millisecond)))
}

func buildAll(verbose bool) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := buildCommand(name, verbose); err != nil {
			return err
		}
	}
	return nil
}

func buildCommand(name string, verbose bool) error {
	output := commands[name]
	if runtime.GOOS == "windows" {
		output += ".exe"
	}
	printInfo(fmt.Sprintf("Building %s -> %s", name, output))
	return run(verbose, "go", "build",
		"-ldflags", ldflags(),
		"-o", filepath.Join(distDir, output),
		"./cmd/"+name)
}

// ldflags stamps the version variables of pkg/contracts
func ldflags() string {
	pkg := module + "/pkg/contracts"
	flags := []string{
		"-s", "-w",
		fmt.Sprintf("-X %s.Version=%s", pkg, version),
		fmt.Sprintf("-X %s.BuildTime=%s", pkg, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s.GitCommit=%s", pkg, gitCommit()),
	}
	return strings.Join(flags, " ")
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
	fmt.Println("Usage: go run build.go -target=TARGET [-v]")
	fmt.Println("Targets: all, test, clean, web, simulator, processor, inventory-report, pipeline")
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}
