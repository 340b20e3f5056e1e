package pipeline

import (
	"github.com/rushteam/recpipe/artifact"
	"github.com/rushteam/recpipe/config"
	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/pkg/dsl"
	"github.com/rushteam/recpipe/recall"
	"github.com/rushteam/recpipe/train"
)

// Options 构建默认流水线时的外部依赖，均可为空
type Options struct {
	// Notifier 产物发布后调用，通常是 remote.Syncer
	Notifier Notifier
	// FactorStore 非空时在 Publish 阶段导出 CF 隐向量
	FactorStore core.Store
}

// Default 按配置组装完整的训练流水线：
// load -> preprocess -> expand -> encode -> split -> train_cf -> train_cbf -> publish
func Default(cfg *config.Config, opts Options) (*Pipeline, error) {
	filter, err := dsl.NewRowFilter(cfg.DataLoader.Filter)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "data_loader.filter", err)
	}

	cf := cfg.ModelBuilding.CF
	cfTrainer := &train.CFTrainer{
		Grid:    train.Grid(cf.Params.NFactors, cf.Params.LrAll, cf.Params.RegAll),
		Epochs:  cf.Options.Epochs,
		Folds:   cf.Options.Folds,
		Workers: cf.Options.Workers,
		Seed:    cfg.TrainTest.RandomState,
	}
	if cf.Options.Seed != nil {
		cfTrainer.Seed = *cf.Options.Seed
	}

	cbf := cfg.ModelBuilding.CBF
	booster := model.DefaultBoosterConfig()
	booster.NEstimators = cbf.Booster.NEstimators
	booster.MaxDepth = cbf.Booster.MaxDepth
	booster.LearningRate = cbf.Booster.LearningRate
	if cbf.Booster.Lambda != nil {
		booster.Lambda = *cbf.Booster.Lambda
	}
	if cbf.Booster.MinChildWeight != nil {
		booster.MinChildWeight = *cbf.Booster.MinChildWeight
	}

	publish := &PublishStage{Store: artifact.NewStore(cfg.Artifacts.Root)}
	if opts.FactorStore != nil {
		publish.Factors = &recall.FactorPublisher{Store: opts.FactorStore, KeyPrefix: cfg.Redis.KeyPrefix}
	}

	return &Pipeline{
		Stages: []Stage{
			&LoadStage{Path: cfg.DataLoader.Path},
			&PreprocessStage{Filter: filter},
			&ExpandStage{},
			&EncodeStage{},
			&SplitStage{
				TestSize:     cfg.TrainTest.TestSize,
				Seed:         cfg.TrainTest.RandomState,
				TrainingCols: cfg.TrainTest.TrainingCols,
			},
			&CFStage{Trainer: cfTrainer, TrainingCols: cfg.TrainTest.TrainingCols},
			&CBFStage{Trainer: &train.ContentTrainer{
				NumericColumns: cbf.NumericParams,
				TextColumns:    cbf.TextParams,
				Booster:        booster,
			}},
			publish,
		},
		ArtifactRoot: cfg.Artifacts.Root,
		Notifier:     opts.Notifier,
	}, nil
}
