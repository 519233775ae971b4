// codes.go - 诊断错误码
//
// 错误码按类别分段，便于测试断言与工具消费：
//   E01xx 名字解析    E02xx 可见性      E03xx 参数/签名
//   E04xx 类型        E05xx 继承/接口   E06xx 泛型
//   E07xx 控制流      E0001 内部错误

package errors

import "strings"

// 错误码
const (
	E0001 = "E0001" // 内部编译器错误

	// 名字解析
	E0100 = "E0100" // 未定义类/枚举/别名/接口
	E0101 = "E0101" // 未定义 bundle
	E0102 = "E0102" // 未定义变量
	E0103 = "E0103" // 未定义方法/函数调用

	// 可见性
	E0200 = "E0200" // 跨 bundle 访问私有类
	E0201 = "E0201" // 静态上下文引用实例成员
	E0202 = "E0202" // 无接收者调用实例方法

	// 参数 / 签名
	E0300 = "E0300" // 参数个数不符
	E0301 = "E0301" // 无匹配重载

	// 类型
	E0400 = "E0400" // 类型不匹配
	E0401 = "E0401" // 维度不匹配
	E0402 = "E0402" // Nil 参与非法运算
	E0403 = "E0403" // TypeOf 操作数非法

	// 继承 / 接口
	E0500 = "E0500" // 自接口或泛型继承
	E0501 = "E0501" // 接口方法未实现
	E0502 = "E0502" // 虚方法未定义
	E0503 = "E0503" // 构造缺少父调用

	// 泛型
	E0600 = "E0600" // 使用未限定的泛型类
	E0601 = "E0601" // 实参/形参个数不符
	E0602 = "E0602" // 实参与 backing 接口不兼容
	E0603 = "E0603" // 嵌套别名

	// 控制流
	E0700 = "E0700" // 路径缺少返回
	E0701 = "E0701" // break/continue 不在循环内
	E0702 = "E0702" // 多个 leaving 块
	E0703 = "E0703" // select 无标签或标签重复
)

// InferCode 从消息文本推断错误码（诊断渲染辅助）
func InferCode(message string) string {
	msg := strings.ToLower(message)

	switch {
	case strings.Contains(msg, "undefined class"), strings.Contains(msg, "undefined enum"),
		strings.Contains(msg, "undefined alias"), strings.Contains(msg, "undefined interface"),
		strings.Contains(msg, "undefined backing"):
		return E0100
	case strings.Contains(msg, "bundle name"):
		return E0101
	case strings.Contains(msg, "undefined variable"):
		return E0102
	case strings.Contains(msg, "undefined function/method call"):
		return E0103
	case strings.Contains(msg, "private class"):
		return E0200
	case strings.Contains(msg, "instance variable from this context"):
		return E0201
	case strings.Contains(msg, "instance method from this context"),
		strings.Contains(msg, "reference a method from this context"):
		return E0202
	case strings.Contains(msg, "parameter size mismatch"):
		return E0300
	case strings.Contains(msg, "invalid cast"), strings.Contains(msg, "invalid operation using classes"):
		return E0400
	case strings.Contains(msg, "dimension size mismatch"), strings.Contains(msg, "invalid array cast"):
		return E0401
	case strings.Contains(msg, "with 'nil' value"), strings.Contains(msg, "operation with nil"):
		return E0402
	case strings.Contains(msg, "'typeof'"):
		return E0403
	case strings.Contains(msg, "derived from a generic or interface"),
		strings.Contains(msg, "derived from interfaces"):
		return E0500
	case strings.Contains(msg, "implemented for the interface"):
		return E0501
	case strings.Contains(msg, "virtual methods have been defined"),
		strings.Contains(msg, "virtual methods have been implemented"):
		return E0502
	case strings.Contains(msg, "parent call required"):
		return E0503
	case strings.Contains(msg, "unqualified instance"):
		return E0600
	case strings.Contains(msg, "concrete to generic size mismatch"),
		strings.Contains(msg, "generic size mismatch"):
		return E0601
	case strings.Contains(msg, "incompatible with backing"):
		return E0602
	case strings.Contains(msg, "nested alias"):
		return E0603
	case strings.Contains(msg, "paths must return"):
		return E0700
	case strings.Contains(msg, "only allowed in loops"):
		return E0701
	case strings.Contains(msg, "'leaving' block"):
		return E0702
	case strings.Contains(msg, "select statement"), strings.Contains(msg, "duplicate select value"):
		return E0703
	}

	return E0001
}
