// reporter.go - 诊断报告器
//
// 诊断按行号累积：同一行只保留首条消息（后续错误多为级联噪音）。
// 分析结束后按行号排序统一渲染。诊断从不作为 Go error 抛出。

package errors

import (
	"fmt"
	"io"
	"sort"
)

// Diagnostic 一条诊断
type Diagnostic struct {
	FileName string
	Line     int
	Code     string
	Message  string
}

// String 渲染为 file:line: message
func (d *Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s", d.FileName, d.Line, d.Message)
}

// Reporter 行号键控的诊断收集器
type Reporter struct {
	byLine map[int]*Diagnostic
}

// NewReporter 创建诊断收集器
func NewReporter() *Reporter {
	return &Reporter{
		byLine: make(map[int]*Diagnostic),
	}
}

// Report 记录一条诊断；同一行的后续诊断被抑制
func (r *Reporter) Report(fileName string, line int, message string) {
	if _, ok := r.byLine[line]; ok {
		return
	}
	r.byLine[line] = &Diagnostic{
		FileName: fileName,
		Line:     line,
		Code:     InferCode(message),
		Message:  message,
	}
}

// HasErrors 是否有诊断
func (r *Reporter) HasErrors() bool {
	return len(r.byLine) > 0
}

// Count 返回诊断条数
func (r *Reporter) Count() int {
	return len(r.byLine)
}

// Diagnostics 返回按行号排序的全部诊断
func (r *Reporter) Diagnostics() []*Diagnostic {
	lines := make([]int, 0, len(r.byLine))
	for line := range r.byLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	diagnostics := make([]*Diagnostic, 0, len(lines))
	for _, line := range lines {
		diagnostics = append(diagnostics, r.byLine[line])
	}
	return diagnostics
}

// DiagnosticAt 返回指定行的诊断，没有返回 nil
func (r *Reporter) DiagnosticAt(line int) *Diagnostic {
	return r.byLine[line]
}

// Render 按行号顺序写出全部诊断
func (r *Reporter) Render(w io.Writer) {
	for _, d := range r.Diagnostics() {
		fmt.Fprintln(w, d.String())
	}
}

// Clear 清空诊断
func (r *Reporter) Clear() {
	r.byLine = make(map[int]*Diagnostic)
}
