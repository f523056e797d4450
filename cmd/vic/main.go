package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/njreid/vic/pkg/vi"
)

const version = "0.1.0"

const ConfigTemplate = `entry "main.vi"
output "lib/main.dart"
app_class "ViApp"
title "%s"
http_timeout "15s"
`

const MainTemplate = `# Tap the button to count.
count = 0

main app:
    align_children = center
    children = [label, add]
    margin = 16

label:
    text_content = "Pressed {count} times"
    text_content_style = [size: 24]

add:
    type = button
    text_content = "Add one"
    on_click: increment()

increment():
    count = count + 1
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	usage := func() {
		fmt.Fprintf(stderr, "Usage: vic <command> [options] [file.vi]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  build     Compile a Vi program to Dart\n")
		fmt.Fprintf(stderr, "  check     Parse, resolve and validate without generating code\n")
		fmt.Fprintf(stderr, "  ast       Print the parsed program as JSON\n")
		fmt.Fprintf(stderr, "  init      Create a new Vi project\n")
		fmt.Fprintf(stderr, "  version   Show version information\n")
	}

	if len(args) < 1 {
		usage()
		return 2
	}

	ctx := context.Background()
	switch args[0] {
	case "build":
		return runBuild(ctx, args[1:], stdout, stderr)
	case "check":
		return runCheck(ctx, args[1:], stdout, stderr)
	case "ast":
		return runAST(args[1:], stdout, stderr)
	case "init":
		return runInit(args[1:], stdin, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "vic version %s\n", version)
		return 0
	case "help", "-h", "-help", "--help":
		usage()
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		usage()
		return 2
	}
}

// project holds the flags shared by build and check.
type project struct {
	dir     string
	archive string
	strict  bool
	verbose bool
}

func (p *project) register(fs *flag.FlagSet) {
	fs.StringVar(&p.dir, "C", ".", "project directory holding vic.kdl or vic.yaml")
	fs.StringVar(&p.archive, "archive", "", "read sources from a txtar archive instead of the file system")
	fs.BoolVar(&p.strict, "strict", false, "treat warnings as errors")
	fs.BoolVar(&p.verbose, "v", false, "log every pipeline stage")
}

// load reads the project config and builds compiler options for it. It
// returns the config so callers can apply their own overrides.
func (p *project) load(stderr io.Writer) (vi.Config, vi.Options, error) {
	cfg, path, err := vi.FindConfig(p.dir)
	if err != nil {
		return cfg, vi.Options{}, err
	}
	level := slog.LevelInfo
	if p.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	opts, err := cfg.Options(logger)
	if err != nil {
		return cfg, opts, err
	}
	if p.archive != "" {
		data, err := os.ReadFile(p.archive)
		if err != nil {
			return cfg, opts, err
		}
		opts.Loader = vi.ParseArchive(data)
	}
	if p.strict {
		opts.WarningsAsErrors = true
	}
	return cfg, opts, nil
}

// entry picks the file to compile: the positional argument, else the
// config's entry relative to the project directory.
func (p *project) entry(fs *flag.FlagSet, cfg vi.Config) string {
	if fs.NArg() > 0 {
		return filepath.Clean(fs.Arg(0))
	}
	if p.archive != "" || filepath.IsAbs(cfg.Entry) {
		return cfg.Entry
	}
	return filepath.Join(p.dir, cfg.Entry)
}

func runBuild(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var p project
	p.register(fs)
	output := fs.String("o", "", "output file, or - for stdout (default from config)")
	class := fs.String("class", "", "name of the generated app widget class")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, opts, err := p.load(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *class != "" {
		opts.Emit.AppClass = *class
	}
	entry := p.entry(fs, cfg)

	res, err := vi.Compile(ctx, entry, opts)
	if err != nil {
		fmt.Fprintln(stderr, describe(ctx, err, opts.Loader))
		return 1
	}

	dest := *output
	if dest == "" {
		dest = filepath.Join(p.dir, cfg.Output)
	}
	if dest == "-" {
		io.WriteString(stdout, res.Dart)
		return 0
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		fmt.Fprintf(stderr, "Error creating output directory: %v\n", err)
		return 1
	}
	if err := os.WriteFile(dest, []byte(res.Dart), 0644); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", dest, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s (%s)\n", dest, res)
	return 0
}

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var p project
	p.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, opts, err := p.load(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	entry, err := vi.Locate(p.entry(fs, cfg))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	src, err := opts.Loader.Load(ctx, entry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	prog, warnings, err := vi.Check(ctx, entry, src, opts)
	if err != nil {
		fmt.Fprintln(stderr, describe(ctx, err, opts.Loader))
		return 1
	}
	for _, w := range warnings {
		fmt.Fprintf(stdout, "%s: %s\n", entry, w)
	}
	fmt.Fprintf(stdout, "%s: ok (%d containers, %d functions, %d warnings)\n",
		entry, prog.Containers.Len(), prog.Funcs.Len(), len(warnings))
	return 0
}

func runAST(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ast", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: vic ast <file.vi>")
		return 2
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	prog, err := vi.Parse(path, string(data))
	if err != nil {
		fmt.Fprintln(stderr, vi.FormatError(err, string(data)))
		return 1
	}
	out, err := vi.EncodeProgram(prog)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	stdout.Write(out)
	fmt.Fprintln(stdout)
	return 0
}

func runInit(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	name := ""
	if len(args) > 0 {
		name = args[0]
	} else {
		fmt.Fprint(stdout, "Project name: ")
		line, _ := bufio.NewReader(stdin).ReadString('\n')
		name = strings.TrimSpace(line)
	}
	if name == "" {
		fmt.Fprintln(stderr, "Error: project name is required")
		return 1
	}

	fmt.Fprintf(stdout, "Initializing project '%s'...\n", name)
	if err := os.Mkdir(name, 0755); err != nil {
		fmt.Fprintf(stderr, "Error creating directory: %v\n", err)
		return 1
	}

	files := map[string]string{
		vi.ConfigFiles[0]: fmt.Sprintf(ConfigTemplate, filepath.Base(name)),
		"main.vi":         MainTemplate,
	}
	for path, content := range files {
		if err := os.WriteFile(filepath.Join(name, path), []byte(content), 0644); err != nil {
			fmt.Fprintf(stderr, "Error writing %s: %v\n", path, err)
			return 1
		}
	}

	fmt.Fprintf(stdout, "\nSuccess! Project '%s' initialized.\n", name)
	fmt.Fprintf(stdout, "To compile it:\n\n")
	fmt.Fprintf(stdout, "  cd %s\n", name)
	fmt.Fprintf(stdout, "  vic build\n")
	return 0
}

// describe formats err for the terminal. Lex and syntax errors are shown
// against the source of the file they occurred in, which may be an import.
func describe(ctx context.Context, err error, loader vi.Loader) string {
	file := ""
	var lexErr *vi.LexError
	var synErr *vi.SyntaxError
	switch {
	case errors.As(err, &lexErr):
		file = lexErr.File
	case errors.As(err, &synErr):
		file = synErr.File
	default:
		return "Error: " + err.Error()
	}
	src, loadErr := loader.Load(ctx, file)
	if loadErr != nil {
		return "Error: " + err.Error()
	}
	return vi.FormatError(err, src)
}
