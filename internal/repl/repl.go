// repl.go - 交互式外壳
//
// 读取语句、维护合成的 Shell:Main 包装并在每次输入后整体重编译。
// 支持三种输入模式：交互、-file 文件、-inline 内联源码；
// -exit 模式执行一条命令即退出。
//
// 词法/语法分析由前端回调注入（不在本仓库范围内）；
// 外壳只负责积累输入、驱动上下文分析并渲染诊断。

package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/obi/internal/analyzer"
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// ParseFunc 前端回调：把积累的源码解析为程序树
// 返回 nil 表示语法错误已另行报告
type ParseFunc func(fileName, source string, treeFactory *ast.TreeFactory,
	typeFactory *types.Factory) *ast.Program

// Mode 输入模式
type Mode int

const (
	ModeInteractive Mode = iota
	ModeFile
	ModeInline
)

// Options 外壳选项
type Options struct {
	Input  string // 文件路径或内联源码
	Mode   Mode
	Libs   []string
	Opt    string
	IsExit bool
	Logger *zap.Logger
	Parse  ParseFunc
}

// Editor 外壳状态
type Editor struct {
	opts   Options
	reader *bufio.Reader
	writer io.Writer

	// 积累的语句（包装进 Shell:Main）
	statements []string
}

// NewEditor 创建外壳
func NewEditor(opts Options) *Editor {
	return &Editor{
		opts:   opts,
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
	}
}

// Edit 运行外壳；返回进程退出码
func (e *Editor) Edit() int {
	switch e.opts.Mode {
	case ModeFile:
		data, err := os.ReadFile(e.opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to read file: '%s'\n", e.opts.Input)
			return 1
		}
		code := e.compileAndReport(e.opts.Input, string(data))
		if e.opts.IsExit || code != 0 {
			return code
		}
		return e.loop()

	case ModeInline:
		code := e.compileAndReport("inline", e.wrapShell(e.opts.Input))
		if e.opts.IsExit || code != 0 {
			return code
		}
		return e.loop()

	default:
		return e.loop()
	}
}

// loop 交互循环
func (e *Editor) loop() int {
	fmt.Fprintln(e.writer, "obi shell, type :help for commands")
	for {
		fmt.Fprint(e.writer, "> ")
		line, err := e.reader.ReadString('\n')
		if err != nil {
			return 0
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == ":quit" || line == ":q":
			return 0

		case line == ":reset":
			e.statements = nil
			fmt.Fprintln(e.writer, "session reset")

		case line == ":list":
			for _, stmt := range e.statements {
				fmt.Fprintln(e.writer, stmt)
			}

		case line == ":help":
			fmt.Fprintln(e.writer, "  :help   show commands")
			fmt.Fprintln(e.writer, "  :list   show session statements")
			fmt.Fprintln(e.writer, "  :reset  clear the session")
			fmt.Fprintln(e.writer, "  :quit   exit the shell")

		case strings.HasPrefix(line, ":load "):
			path := strings.TrimSpace(strings.TrimPrefix(line, ":load "))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Unable to read file: '%s'\n", path)
				continue
			}
			e.compileAndReport(path, string(data))

		case line == "":

		default:
			// 语句并入会话，整体重编译；失败则回滚
			e.statements = append(e.statements, line)
			if e.compileAndReport("shell", e.wrapShell(strings.Join(e.statements, "\n"))) != 0 {
				e.statements = e.statements[:len(e.statements)-1]
			}
		}
	}
}

// wrapShell 把语句包进合成的 Shell:Main
func (e *Editor) wrapShell(body string) string {
	var sb strings.Builder
	sb.WriteString("class Shell {\n")
	sb.WriteString("  function : Main(args : String[]) ~ Nil {\n")
	sb.WriteString(body)
	sb.WriteString("\n  }\n}\n")
	return sb.String()
}

// compileAndReport 解析 + 上下文分析；返回退出码
func (e *Editor) compileAndReport(fileName, source string) int {
	if e.opts.Parse == nil {
		fmt.Fprintln(os.Stderr, "No front end installed")
		return 1
	}

	treeFactory := ast.NewTreeFactory()
	typeFactory := types.NewFactory()
	program := e.opts.Parse(fileName, source, treeFactory, typeFactory)
	if program == nil {
		return 1
	}

	lnk := linker.NewLinker(e.opts.Libs)
	contextAnalyzer := analyzer.New(program, lnk, typeFactory, treeFactory, analyzer.Options{
		Logger: e.opts.Logger,
	})

	if !contextAnalyzer.Analyze() {
		contextAnalyzer.Reporter().Render(os.Stderr)
		return 1
	}
	return 0
}
