package pipeline

import (
	"context"
)

// Kind 用于标记 Stage 类型，方便观测/编排（例如按阶段打点）。
type Kind string

const (
	KindLoad      Kind = "load"      // 读取原始数据
	KindTransform Kind = "transform" // 清洗、展开、编码、切分
	KindTrain     Kind = "train"     // 模型训练
	KindPublish   Kind = "publish"   // 产物落盘与导出
)

// Stage 是 Pipeline 的最小可扩展单元。
// 统一采用"读写同一个 Run"的形态，前一阶段的输出即后一阶段的输入。
type Stage interface {
	Name() string
	Kind() Kind

	Run(ctx context.Context, run *Run) error
}

// Notifier 在产物全部落盘后被调用，root 为产物根目录
type Notifier interface {
	Notify(ctx context.Context, root string) error
}
