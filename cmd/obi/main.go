package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/obi/internal/config"
	"github.com/tangzhangming/obi/internal/repl"
)

const Version = "0.1.0"

func main() {
	var (
		fileArg   = flag.String("file", "", "source file")
		inlineArg = flag.String("inline", "", "inline source code")
		libArg    = flag.String("lib", "", "list of linked libraries (separated by commas)")
		optArg    = flag.String("opt", "", "compiler optimizations s0-s3 (s3 being the most aggressive and default)")
		exitArg   = flag.Bool("exit", false, "shell will exit after command-line execution")
		helpArg   = flag.Bool("help", false, "comand line options")
		debugArg  = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	if *helpArg || flag.NArg() > 0 {
		usage()
		os.Exit(0)
	}

	// -file 与 -inline 至多一个
	if *fileArg != "" && *inlineArg != "" {
		usage()
		os.Exit(1)
	}

	// 项目配置打底，命令行覆盖
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s: %v\n", config.FileName, err)
		os.Exit(1)
	}

	libs := cfg.Libraries
	if *libArg != "" {
		libs = strings.Split(*libArg, ",")
		for i := range libs {
			libs[i] = strings.TrimSpace(libs[i])
		}
	}

	opt := cfg.Opt
	if *optArg != "" {
		opt = *optArg
	}
	switch opt {
	case "s0", "s1", "s2", "s3":
	default:
		usage()
		os.Exit(1)
	}

	var logger *zap.Logger
	if *debugArg {
		logger, _ = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	mode := repl.ModeInteractive
	input := ""
	if *fileArg != "" {
		mode = repl.ModeFile
		input = *fileArg
	} else if *inlineArg != "" {
		mode = repl.ModeInline
		input = *inlineArg
	}

	editor := repl.NewEditor(repl.Options{
		Input:  input,
		Mode:   mode,
		Libs:   libs,
		Opt:    opt,
		IsExit: *exitArg,
		Logger: logger,
		Parse:  nil, // 前端由上层装配
	})
	os.Exit(editor.Edit())
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: obi")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  -file: [optional] source file")
	fmt.Fprintln(os.Stderr, "  -inline: [optional] inline source code")
	fmt.Fprintln(os.Stderr, "  -lib: [optional] list of linked libraries (separated by commas)")
	fmt.Fprintln(os.Stderr, "  -opt: [optional] compiler optimizations s0-s3 (s3 being the most aggressive and default)")
	fmt.Fprintln(os.Stderr, "  -help: [optional] comand line options")
	fmt.Fprintln(os.Stderr, "  -exit: [optional] shell will exit after command-line execution")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "---")
	fmt.Fprintf(os.Stderr, "%s obi (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
}
