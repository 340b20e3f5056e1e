package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// getCELEnv 获取或创建 CEL 环境，只声明一个动态类型变量 row
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("row", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// RowFilter 是清洗阶段的行过滤器，使用 CEL (Common Expression Language) 表达式。
// 表达式在创建时编译一次，之后 Match 可并发调用。
//
// 可用字段（row.xxx）与清洗后的列名一致，数值列已转换为 double/int：
//   - row.rating >= 3.0
//   - row.rating_count > 100 && row.discount_percentage < 90.0
//   - row.category.startsWith("computers")
//   - row.product_id in ["B07JW9H4J1", "B098NS6PVG"]
type RowFilter struct {
	expr string
	prg  cel.Program
}

// NewRowFilter 编译表达式；空表达式返回 nil（不过滤）
func NewRowFilter(expr string) (*RowFilter, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %v", out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &RowFilter{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式
func (f *RowFilter) Expr() string { return f.expr }

// Match 对一行求值；nil 过滤器总是返回 true
func (f *RowFilter) Match(row map[string]any) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, _, err := f.prg.Eval(map[string]any{"row": row})
	if err != nil {
		// 访问不存在的字段会报错，调用方应使用已知列名
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}
