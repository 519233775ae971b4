// overload.go - 重载选择器
//
// 候选按短名收集、按元数过滤；每个参数位打分：
//   0  精确匹配（同基础类型或同类名）
//  +1  相对匹配（基础类型加宽、合法下行转换、枚举->Int、Nil->类）
//  -1  不匹配（候选作废）
// 打分前先尝试装箱/拆箱重写，命中候选的重写参数表会安装回调用点。
// 唯一有效候选直接当选；多候选取零分位最多者，平分取先声明者；
// 全部失败时针对唯一函数型参数候选做 lambda 类型推导后重启选择。

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// matchCallingParameter 单个参数位打分
func (a *Analyzer) matchCallingParameter(callingParam ast.Expression, methodType *types.Type) int {
	callingType := a.getExpressionType(callingParam)
	if callingType == nil || methodType == nil {
		return -1
	}

	// 数组位
	if !a.isScalar(callingParam, true) {
		if callingType.Kind() == methodType.Kind() {
			if callingType.Kind() == types.ClassType &&
				a.isClassEnumParameterMatch(callingType, methodType) &&
				callingType.Dimension() == methodType.Dimension() {
				return 0
			}
			if callingType.Dimension() == methodType.Dimension() {
				return 0
			}
		}
		return -1
	}

	// 基础类型精确匹配
	if callingType.Kind() != types.ClassType && methodType.Kind() != types.ClassType &&
		callingType.Kind() != types.FuncType && methodType.Kind() != types.FuncType &&
		methodType.Dimension() == 0 && callingType.Kind() == methodType.Kind() {
		return 0
	}

	if methodType.Dimension() != 0 {
		return -1
	}

	// Holder 形参：把原始实参视作对应 Holder 参与匹配
	if linker.IsHolderType(methodType.Name()) {
		if holderName := linker.HolderNameFor(callingType.Kind()); holderName != "" &&
			callingType.Kind() != types.BooleanType {
			callingType = a.typeFactory.MakeClassType(holderName)
		}
	}

	switch callingType.Kind() {
	case types.NilType:
		if methodType.Kind() == types.ClassType {
			return 1
		}
		return -1

	case types.BooleanType:
		if methodType.Kind() == types.BooleanType {
			return 0
		}
		return -1

	case types.ByteType, types.CharType, types.IntType, types.FloatType:
		switch methodType.Kind() {
		case types.ByteType, types.CharType, types.IntType, types.FloatType:
			return 1
		}
		return -1

	case types.ClassType:
		if methodType.Kind() == types.ClassType {
			// 精确匹配
			if a.isClassEnumParameterMatch(callingType, methodType) {
				if callingType.HasGenerics() || methodType.HasGenerics() {
					if a.checkGenericEqualTypes(callingType, methodType, callingParam, true) {
						return 0
					}
					return -1
				}
				return 0
			}
			// 相对匹配：下行转换
			fromKlass, fromLibKlass := a.getProgramLibraryClassByName(callingType.Name())
			if toKlass := a.searchProgramClasses(methodType.Name()); toKlass != nil {
				if a.validDownCast(toKlass.Name(), fromKlass, fromLibKlass) {
					return 1
				}
				return -1
			}
			if toLibKlass := a.linker.SearchClassLibraries(methodType.Name(),
				a.program.UsesFor(a.currentClass.FileName())); toLibKlass != nil {
				if a.validDownCast(toLibKlass.Name(), fromKlass, fromLibKlass) {
					return 1
				}
				return -1
			}
		} else if methodType.Kind() == types.IntType {
			// 枚举放宽到 Int
			if a.program.GetEnum(callingType.Name()) != nil ||
				a.linker.SearchEnumLibraries(callingType.Name(), a.program.Uses()) != nil {
				return 1
			}
		}
		return -1

	case types.FuncType:
		callingTypeName := callingType.Name()
		methodTypeName := methodType.Name()
		if methodTypeName == "" {
			a.analyzeVariableFunctionParameters(methodType, callingParam.FileName(),
				callingParam.Line(), a.currentClass)
			methodTypeName = "m." + a.encodeFunctionType(methodType.FunctionParameters(),
				methodType.FunctionReturn())
			methodType.SetName(methodTypeName)
		}
		if callingTypeName == methodTypeName {
			return 0
		}
		return -1
	}

	return -1
}

// isClassEnumParameterMatch 类/枚举参数位的精确匹配
func (a *Analyzer) isClassEnumParameterMatch(callingType, methodType *types.Type) bool {
	fromKlassName := callingType.Name()

	var fromLibKlass *linker.LibraryClass
	fromKlass := a.searchProgramClasses(fromKlassName)
	if fromKlass == nil && a.currentClass.HasGenerics() {
		fromKlass = a.currentClass.GetGenericClass(fromKlassName)
	}
	if fromKlass == nil {
		fromLibKlass = a.linker.SearchClassLibraries(fromKlassName, a.program.Uses())
	}

	// 目标类名
	var toKlassName string
	toKlass := a.searchProgramClasses(methodType.Name())
	if toKlass == nil && a.currentClass.HasGenerics() {
		if toKlass = a.currentClass.GetGenericClass(methodType.Name()); toKlass != nil {
			toKlassName = toKlass.Name()
		}
	} else if toKlass != nil {
		toKlassName = toKlass.Name()
	}
	if toKlass == nil {
		if toLibKlass := a.linker.SearchClassLibraries(methodType.Name(), a.program.Uses()); toLibKlass != nil {
			toKlassName = toLibKlass.Name()
		}
	}

	// 枚举位
	if fromKlass == nil && fromLibKlass == nil {
		fromEnum := a.searchProgramEnums(fromKlassName)
		fromLibEnum := a.linker.SearchEnumLibraries(fromKlassName, a.program.Uses())

		var toEnumName string
		if toEnum := a.searchProgramEnums(methodType.Name()); toEnum != nil {
			toEnumName = toEnum.Name()
		} else if toLibEnum := a.linker.SearchEnumLibraries(methodType.Name(), a.program.Uses()); toLibEnum != nil {
			toEnumName = toLibEnum.Name()
		}

		if fromEnum != nil && fromEnum.Name() == toEnumName {
			return true
		}
		if fromLibEnum != nil && fromLibEnum.Name() == toEnumName {
			return true
		}
		return false
	}

	if fromKlass != nil && fromKlass.Name() == toKlassName {
		return true
	}
	if fromLibKlass != nil && fromLibKlass.Name() == toKlassName {
		return true
	}
	return false
}

// ============================================================================
// 候选与选择
// ============================================================================

// methodCallSelection 一个候选及其重写参数表与逐位得分
type methodCallSelection struct {
	method     *ast.Method
	libMethod  *linker.LibraryMethod
	boxedParams []ast.Expression
	paramMatches []int
}

// isValid 无 -1 位
func (s *methodCallSelection) isValid() bool {
	for _, match := range s.paramMatches {
		if match == -1 {
			return false
		}
	}
	return true
}

// zeroScore 零分位个数
func (s *methodCallSelection) zeroScore() int {
	score := 0
	for _, match := range s.paramMatches {
		if match == 0 {
			score++
		}
	}
	return score
}

// selectMatch 通用选择逻辑：唯一有效直接当选，否则零分位最多者
func selectMatch(matches []*methodCallSelection) *methodCallSelection {
	var validMatches []*methodCallSelection
	for _, match := range matches {
		if match.isValid() {
			validMatches = append(validMatches, match)
		}
	}

	if len(validMatches) == 0 {
		return nil
	}
	if len(validMatches) == 1 {
		return validMatches[0]
	}

	matchIndex := -1
	highScore := -1
	for i, match := range validMatches {
		if score := match.zeroScore(); score > highScore {
			matchIndex = i
			highScore = score
		}
	}
	if matchIndex == -1 {
		return nil
	}
	return validMatches[matchIndex]
}

// resolveMethodCall 程序类重载解析
func (a *Analyzer) resolveMethodCall(klass *ast.Class, methodCall *ast.MethodCall) *ast.Method {
	methodName := methodCall.MethodName()
	exprParams := methodCall.CallingParameters().Expressions()
	candidates := klass.GetAllUnqualifiedMethods(methodName)

	var matches []*methodCallSelection
	var arityCandidates []*ast.Method
	for _, candidate := range candidates {
		methodParams := candidate.Declarations().Declarations()
		if len(exprParams) != len(methodParams) {
			continue
		}
		arityCandidates = append(arityCandidates, candidate)

		// 逐位装箱/拆箱重写（不落地，保留与其他候选比较）
		boxedResolvedParams := make([]ast.Expression, 0, len(exprParams))
		for j, exprParam := range exprParams {
			exprType := exprParam.EvalType()
			methodType := a.resolveGenericTypeFor(methodParams[j].Entry().Type(), methodCall,
				klass, nil)

			boxedParam := a.boxExpression(methodType, exprParam)
			if boxedParam == nil {
				// 原始位收到 Holder：按拆箱处理
				isPrimitive := methodType != nil && methodType.Kind() != types.ClassType
				boxedParam = a.unboxingExpression(exprType, exprParam, isPrimitive)
			}
			if boxedParam != nil {
				boxedResolvedParams = append(boxedResolvedParams, boxedParam)
			} else {
				boxedResolvedParams = append(boxedResolvedParams, exprParam)
			}
		}

		match := &methodCallSelection{method: candidate, boxedParams: boxedResolvedParams}
		for j, boxedParam := range boxedResolvedParams {
			methodType := a.resolveGenericTypeFor(methodParams[j].Entry().Type(), methodCall,
				klass, nil)
			match.paramMatches = append(match.paramMatches,
				a.matchCallingParameter(boxedParam, methodType))
		}
		matches = append(matches, match)
	}

	selected := selectMatch(matches)
	if selected != nil {
		methodCall.CallingParameters().SetExpressions(selected.boxedParams)
		method := selected.method

		// 最终候选的隐式转换检查
		methodParams := method.Declarations().Declarations()
		for j, expression := range exprParams {
			for expression.MethodCall() != nil {
				a.analyzeExpressionMethodCall(expression)
				expression = expression.MethodCall()
			}
			left := a.resolveGenericTypeFor(methodParams[j].Entry().Type(), methodCall, klass, nil)
			a.analyzeRightCastExpr(left, expression, a.isScalar(expression, true))
		}
		return method
	}

	// lambda 推导
	if derived := a.derivedLambdaFunction(arityCandidates); derived != nil {
		return derived
	}
	if len(arityCandidates) > 0 {
		a.altMethodNames = altMethodNames(arityCandidates)
	}
	return nil
}

// resolveLibraryMethodCall 库类重载解析
func (a *Analyzer) resolveLibraryMethodCall(klass *linker.LibraryClass,
	methodCall *ast.MethodCall) *linker.LibraryMethod {
	methodName := methodCall.MethodName()
	exprParams := methodCall.CallingParameters().Expressions()
	candidates := klass.UnqualifiedMethods(methodName)

	var matches []*methodCallSelection
	var arityCandidates []*linker.LibraryMethod
	for _, candidate := range candidates {
		methodParams := candidate.DeclarationTypes()
		if len(exprParams) != len(methodParams) {
			continue
		}
		arityCandidates = append(arityCandidates, candidate)

		boxedResolvedParams := make([]ast.Expression, 0, len(exprParams))
		for j, exprParam := range exprParams {
			exprType := exprParam.EvalType()
			methodType := a.resolveGenericTypeFor(methodParams[j], methodCall, nil, klass)

			boxedParam := a.boxExpression(methodType, exprParam)
			if boxedParam == nil {
				// 原始位收到 Holder：按拆箱处理
				isPrimitive := methodType != nil && methodType.Kind() != types.ClassType
				boxedParam = a.unboxingExpression(exprType, exprParam, isPrimitive)
			}
			if boxedParam != nil {
				boxedResolvedParams = append(boxedResolvedParams, boxedParam)
			} else {
				boxedResolvedParams = append(boxedResolvedParams, exprParam)
			}
		}

		match := &methodCallSelection{libMethod: candidate, boxedParams: boxedResolvedParams}
		for j, boxedParam := range boxedResolvedParams {
			methodType := a.resolveGenericTypeFor(methodParams[j], methodCall, nil, klass)
			match.paramMatches = append(match.paramMatches,
				a.matchCallingParameter(boxedParam, methodType))
		}
		matches = append(matches, match)
	}

	selected := selectMatch(matches)
	if selected != nil {
		methodCall.CallingParameters().SetExpressions(selected.boxedParams)
		libMethod := selected.libMethod

		methodParams := libMethod.DeclarationTypes()
		for j, expression := range exprParams {
			for expression.MethodCall() != nil {
				a.analyzeExpressionMethodCall(expression)
				if expression.ExpressionType() == ast.MethodCallExpr &&
					expression.EvalType() != nil &&
					expression.EvalType().Kind() == types.NilType {
					a.ProcessError(methodCall.FileName(), methodCall.Line(),
						"Invalid operation with 'Nil' value")
				}
				expression = expression.MethodCall()
			}
			left := a.resolveGenericTypeFor(methodParams[j], methodCall, nil, klass)
			a.analyzeRightCastExpr(left, expression, a.isScalar(expression, true))
		}
		return libMethod
	}

	if derived := a.derivedLibraryLambdaFunction(arityCandidates); derived != nil {
		return derived
	}
	if len(arityCandidates) > 0 {
		a.altMethodNames = altLibraryMethodNames(arityCandidates)
	}
	return nil
}

// altMethodNames 候选签名的用户可读形式
func altMethodNames(candidates []*ast.Method) []string {
	names := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		names = append(names, types.FormatClassName(candidate.EncodedName()))
	}
	return names
}

// altLibraryMethodNames 库候选签名的用户可读形式
func altLibraryMethodNames(candidates []*linker.LibraryMethod) []string {
	names := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		names = append(names, types.FormatClassName(candidate.Name()))
	}
	return names
}
