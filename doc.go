// Package recpipe 是一个离线推荐训练流水线。
//
// 设计要点：
// - Stage-first: 训练流程由顺序执行的 Stage 串联（load → preprocess → expand → encode → split → train → publish）
// - Fail-fast: 任一阶段失败即终止，产物只在全部训练成功后一次性落盘
// - 产物自描述: 模型、类目词表和运行清单随产物一起发布，推理侧无需重新拟合
package recpipe

import "github.com/rushteam/recpipe/pipeline"

// 轻量 facade：便于用户直接 import "recpipe" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Stage = pipeline.Stage
type Run = pipeline.Run
type Kind = pipeline.Kind

const (
	KindLoad      = pipeline.KindLoad
	KindTransform = pipeline.KindTransform
	KindTrain     = pipeline.KindTrain
	KindPublish   = pipeline.KindPublish
)
