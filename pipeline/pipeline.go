package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rushteam/recpipe/artifact"
	"github.com/rushteam/recpipe/pkg/logging"
	"github.com/rushteam/recpipe/pkg/metrics"
)

// Pipeline 把训练流程拆成顺序执行的 Stage 链，任一阶段失败即终止。
type Pipeline struct {
	Stages []Stage

	// ArtifactRoot 产物根目录
	ArtifactRoot string
	// Notifier 可选，全部阶段成功后调用（远端同步）
	Notifier Notifier
}

// Execute 依次执行各阶段
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	log := logging.With().Str("run_id", run.ID).Logger()
	log.Info().Int("stages", len(p.Stages)).Str("artifacts", p.ArtifactRoot).Msg("run started")

	for _, stage := range p.Stages {
		start := time.Now()
		err := stage.Run(ctx, run)
		elapsed := time.Since(start)
		metrics.RecordStage(stage.Name(), elapsed, err)

		if err != nil {
			log.Error().Err(err).Str("stage", stage.Name()).Dur("elapsed", elapsed).Msg("stage failed")
			p.recordFailure(ctx, run, stage.Name(), err)
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		log.Info().Str("stage", stage.Name()).Str("kind", string(stage.Kind())).Dur("elapsed", elapsed).Msg("stage finished")
	}

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, p.ArtifactRoot); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}
	log.Info().Dur("elapsed", time.Since(run.StartedAt)).Msg("run succeeded")
	return nil
}

// recordFailure 只在运行记录库已存在时写入失败记录，失败的运行不创建任何产物
func (p *Pipeline) recordFailure(ctx context.Context, run *Run, stage string, cause error) {
	path := filepath.Join(p.ArtifactRoot, artifact.RegistryFile)
	if !artifact.NewStore(p.ArtifactRoot).Exists(artifact.RegistryFile) {
		return
	}
	reg, err := artifact.OpenRegistry(path)
	if err != nil {
		logging.Warn().Err(err).Msg("open run registry")
		return
	}
	defer reg.Close()

	rec := artifact.RunRecord{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: time.Now(),
		Status:     StatusFailed,
		Error:      fmt.Sprintf("%s: %v", stage, cause),
	}
	if err := reg.Record(context.WithoutCancel(ctx), rec); err != nil {
		logging.Warn().Err(err).Msg("record failed run")
	}
}

// 运行状态
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)
