// analyzer.go - 上下文分析驱动
//
// 语法分析与代码生成之间的语义检查阶段：绑定名字、选择重载、
// 推导类型、校验转换与泛型、证明返回路径完整。
//
// 阶段顺序（Analyze）：
//   1. 库装载                 2. use 校验
//   3. 别名展开               4. 默认参数展开
//   5. 签名重编码             6. 父类/接口绑定
//   7. 逐 bundle 分析         8. 字段重名检查（含于 7）
//   9. 方法分析（含于 7）     10. 入口点检查
//
// 诊断按行号累积、同行抑制；任何诊断都会使 Analyze 返回 false
// 并丢弃程序树，调用方不得复用。

package analyzer

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/errors"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// Analyzer 上下文分析器
// 单线程协作式：全部可变状态归驱动对象所有
type Analyzer struct {
	program     *ast.Program
	linker      *linker.Linker
	typeFactory *types.Factory
	treeFactory *ast.TreeFactory
	reporter    *errors.Reporter
	logger      *zap.Logger

	isLib bool
	isWeb bool

	mainFound bool
	webFound  bool

	// 遍历游标
	bundle        *ast.Bundle
	symbolMgr     *ast.SymbolTableManager
	currentClass  *ast.Class
	currentMethod *ast.Method
	currentTable  *ast.SymbolTable

	// lambda 捕获现场
	captureLambda *ast.Lambda
	captureMethod *ast.Method
	captureTable  *ast.SymbolTable

	// lambda 类型推导挂起对：(lambda, 调用点)
	inferredLambda *ast.Lambda
	inferredCall   *ast.MethodCall

	// 候选签名（重载失败时拼入诊断）
	altMethodNames []string

	inLoop  int
	classID int

	anonymousClasses []*ast.Class
}

// Options 分析器选项
type Options struct {
	IsLib  bool
	IsWeb  bool
	Logger *zap.Logger
}

// New 创建分析器
func New(program *ast.Program, lnk *linker.Linker, typeFactory *types.Factory,
	treeFactory *ast.TreeFactory, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		program:     program,
		linker:      lnk,
		typeFactory: typeFactory,
		treeFactory: treeFactory,
		reporter:    errors.NewReporter(),
		logger:      logger,
		isLib:       opts.IsLib,
		isWeb:       opts.IsWeb,
	}
}

// Reporter 返回诊断收集器
func (a *Analyzer) Reporter() *errors.Reporter {
	return a.reporter
}

// Program 返回程序树；分析失败后为 nil
func (a *Analyzer) Program() *ast.Program {
	return a.program
}

// ProcessError 记录一条节点诊断
func (a *Analyzer) ProcessError(fileName string, line int, message string) {
	a.logger.Debug("analysis error",
		zap.String("file", fileName), zap.Int("line", line), zap.String("msg", message))
	a.reporter.Report(fileName, line, message)
}

// processFileError 记录一条文件级诊断（定位到第 1 行）
func (a *Analyzer) processFileError(fileName, message string) {
	a.reporter.Report(fileName, 1, message)
}

// processAlternativeMethods 把候选签名拼入诊断消息
func (a *Analyzer) processAlternativeMethods(message string) string {
	if len(a.altMethodNames) > 0 {
		message += "\n\tPossible alternative(s):\n"
		for _, name := range a.altMethodNames {
			message += "\t\t" + name + "\n"
		}
		a.altMethodNames = nil
	}
	return message
}

// checkErrors 有诊断时丢弃程序树
func (a *Analyzer) checkErrors() bool {
	if a.reporter.HasErrors() {
		// 分析失败是破坏性的：调用方不得复用程序树
		a.program = nil
		return false
	}
	return true
}

// Analyze 执行全部分析阶段
func (a *Analyzer) Analyze() bool {
	a.logger.Debug("contextual analysis started")

	// 1. 库装载
	if err := a.linker.Load(); err != nil {
		a.processFileError(a.program.FileName(), "Unable to load linked libraries: "+err.Error())
	}

	// 2. use 校验
	fileName := a.program.FileName()
	for _, use := range a.program.Uses() {
		if !a.program.HasBundleName(use) && !a.linker.HasBundleName(use) {
			a.processFileError(fileName,
				"Bundle name '"+use+"' not defined in program or linked libraries")
		}
	}

	// 3. 别名展开：原地改写工厂持有的全部别名类型
	for _, t := range a.typeFactory.Instances() {
		if t.Kind() == types.AliasType {
			if resolved := a.resolveAliasAt(t.Name(), t.FileName(), t.Line()); resolved != nil {
				t.Set(resolved)
			}
		}
	}

	// 4. 默认参数展开
	for _, bundle := range a.program.Bundles() {
		for _, klass := range bundle.Classes() {
			methods := klass.Methods()
			for _, method := range methods {
				a.addDefaultParameterMethods(bundle, klass, method)
			}
		}
	}

	// 5. 签名重编码：类名全部展开为全限定名
	for _, bundle := range a.program.Bundles() {
		a.bundle = bundle
		for _, klass := range bundle.Classes() {
			for _, method := range klass.Methods() {
				if !method.IsLambda() {
					a.encodeMethodSignature(klass, method)
				}
			}
		}
		for _, alias := range bundle.Aliases() {
			a.encodeAliasSignature(alias)
		}
	}

	// 6. 父类绑定与方法索引重建
	for _, bundle := range a.program.Bundles() {
		a.bundle = bundle
		for _, klass := range bundle.Classes() {
			parentName := klass.ParentName()
			if parentName == "" && klass.Name() != linker.SystemBaseName {
				parentName = linker.SystemBaseName
				klass.SetParentName(linker.SystemBaseName)
			}

			if parentName != "" {
				if parent := a.searchProgramClasses(parentName); parent != nil {
					klass.SetParent(parent)
					parent.AddChild(klass)
				} else if libParent := a.linker.SearchClassLibraries(parentName,
					a.program.UsesFor(klass.FileName())); libParent != nil {
					klass.SetLibraryParent(libParent)
					libParent.AddChild(klass)
				} else {
					a.ProcessError(klass.FileName(), klass.Line(),
						"Attempting to inherent from an undefined class type")
				}
			}
			klass.AssociateMethods()
		}
	}

	// 7. 逐 bundle 分析
	for _, bundle := range a.program.Bundles() {
		a.bundle = bundle
		a.symbolMgr = bundle.SymbolTableManager()

		for _, eenum := range bundle.Enums() {
			a.analyzeEnum(eenum)
		}
		classes := bundle.Classes()
		for _, klass := range classes {
			a.analyzeClass(klass, a.classID)
			a.classID++
		}
		// 8. 字段重名检查
		a.analyzeDuplicateEntries(classes)
		// 9. 方法分析
		for _, klass := range classes {
			a.analyzeMethods(klass)
		}
	}

	// 10. 入口点检查
	if !a.mainFound && !a.isLib && !a.isWeb {
		a.processFileError(a.program.FileName(), "The 'Main(args)' function was not defined")
	}
	if a.isWeb && !a.webFound {
		a.processFileError(a.program.FileName(), "The 'Action(args)' function was not defined")
	}

	return a.checkErrors()
}

// ============================================================================
// 枚举与类
// ============================================================================

// analyzeEnum 校验枚举定义
func (a *Analyzer) analyzeEnum(eenum *ast.Enum) {
	if !a.hasProgramLibraryEnum(eenum.Name()) {
		a.ProcessError(eenum.FileName(), eenum.Line(),
			"Undefined enum: '"+types.FormatClassName(eenum.Name())+"'")
	}

	uses := a.program.UsesFor(eenum.FileName())
	if a.linker.SearchClassLibraries(eenum.Name(), uses) != nil ||
		a.linker.SearchEnumLibraries(eenum.Name(), uses) != nil {
		a.ProcessError(eenum.FileName(), eenum.Line(),
			"Enum '"+types.FormatClassName(eenum.Name())+"' defined in program and shared libraries")
	}
}

// analyzeDuplicateEntries 字段不得与任何祖先类字段同名
func (a *Analyzer) analyzeDuplicateEntries(classes []*ast.Class) {
	for _, klass := range classes {
		for _, stmt := range klass.Statements() {
			declaration, ok := stmt.(*ast.Declaration)
			if !ok {
				continue
			}
			entry := declaration.Entry()
			if entry == nil {
				continue
			}
			if a.duplicateParentEntries(entry, klass) {
				if short := shortEntryName(entry.Name()); short != "" {
					a.ProcessError(declaration.FileName(), declaration.Line(),
						"Declaration name '"+short+"' defined in a parent class")
				} else {
					a.ProcessError(declaration.FileName(), declaration.Line(),
						"Internal compiler error: Invalid entry name")
				}
			}
		}
	}
}

// analyzeClass 校验类定义（泛型、父类、接口、字段声明）
func (a *Analyzer) analyzeClass(klass *ast.Class, id int) {
	a.logger.Debug("class", zap.String("name", klass.Name()), zap.Int("id", id))

	a.currentClass = klass
	klass.SetID(id)
	klass.SetCalled(true)
	klass.SetSymbolTable(a.symbolMgr.GetSymbolTable(klass.Name()))

	if !a.hasProgramLibraryClass(klass.Name()) {
		a.ProcessError(klass.FileName(), klass.Line(), "Undefined class: '"+klass.Name()+"'")
	}

	uses := a.program.UsesFor(klass.FileName())
	if a.linker.SearchClassLibraries(klass.Name(), uses) != nil ||
		a.linker.SearchEnumLibraries(klass.Name(), uses) != nil {
		a.ProcessError(klass.FileName(), klass.Line(),
			"Class '"+klass.Name()+"' defined in shared libraries")
	}

	a.analyzeGenerics(klass)
	a.checkParent(klass)
	a.analyzeInterfaces(klass)

	// 字段声明
	for _, stmt := range klass.Statements() {
		a.currentMethod = nil
		if declaration, ok := stmt.(*ast.Declaration); ok {
			a.analyzeDeclaration(declaration, klass)
		}
	}
}

// checkParent 父类不得为接口或泛型
func (a *Analyzer) checkParent(klass *ast.Class) {
	parent := klass.Parent()
	if parent != nil && (parent.IsInterface() || parent.HasGenerics()) {
		a.ProcessError(klass.FileName(), klass.Line(),
			"Class '"+klass.Name()+"' cannot be derived from a generic or interface")
		return
	}
	if libParent := klass.LibraryParent(); libParent != nil && libParent.IsInterface() {
		a.ProcessError(klass.FileName(), klass.Line(), "Classes cannot be derived from interfaces")
	}
}

// analyzeMethods 分析一个类的全部方法并校验虚方法实现
func (a *Analyzer) analyzeMethods(klass *ast.Class) {
	a.currentClass = klass
	a.currentTable = a.symbolMgr.GetSymbolTable(klass.Name())

	for _, method := range klass.Methods() {
		a.analyzeMethod(method)
	}

	// 虚父类的全部虚方法必须有实现
	if parent := klass.Parent(); parent != nil && parent.IsVirtual() {
		if !a.analyzeVirtualMethods(klass, parent) {
			a.ProcessError(klass.FileName(), klass.Line(),
				"Not all virtual methods have been implemented for the class/interface: "+parent.Name())
		}
	} else if libParent := klass.LibraryParent(); libParent != nil && libParent.IsVirtual() {
		if !a.analyzeLibraryVirtualMethods(klass, libParent) {
			a.ProcessError(klass.FileName(), klass.Line(),
				"Not all virtual methods have been implemented for the class/interface: "+libParent.Name())
		}
	}

	if klass.AnonymousCall() {
		a.anonymousClasses = append(a.anonymousClasses, klass)
	}
}

// shortEntryName 取 scope:short 的短名部分
func shortEntryName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[i+1:]
		}
	}
	return ""
}
