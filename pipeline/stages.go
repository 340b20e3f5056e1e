package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/recpipe/artifact"
	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/feature"
	"github.com/rushteam/recpipe/pkg/dsl"
	"github.com/rushteam/recpipe/pkg/logging"
	"github.com/rushteam/recpipe/pkg/metrics"
	"github.com/rushteam/recpipe/preprocess"
	"github.com/rushteam/recpipe/recall"
	"github.com/rushteam/recpipe/train"
)

// LoadStage 读取原始 CSV
type LoadStage struct {
	Path string
}

func (s *LoadStage) Name() string { return "load" }
func (s *LoadStage) Kind() Kind   { return KindLoad }

func (s *LoadStage) Run(ctx context.Context, run *Run) error {
	raw, err := dataset.ReadCSV(s.Path)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return core.NewDataError("%s contains no records", s.Path)
	}
	run.Raw = raw
	metrics.StageRows.WithLabelValues(s.Name()).Set(float64(len(raw)))
	logging.Stage(s.Name()).Info().Str("path", s.Path).Int("rows", len(raw)).Msg("loaded raw records")
	return nil
}

// PreprocessStage 清洗原始记录，可选 CEL 行过滤
type PreprocessStage struct {
	Filter *dsl.RowFilter
}

func (s *PreprocessStage) Name() string { return "preprocess" }
func (s *PreprocessStage) Kind() Kind   { return KindTransform }

func (s *PreprocessStage) Run(ctx context.Context, run *Run) error {
	p := &preprocess.Preprocessor{Filter: s.Filter}
	rows, stats, err := p.Process(ctx, run.Raw)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return core.NewDataError("no rows left after preprocessing (%d dropped)", stats.DroppedTotal())
	}
	run.Clean = rows
	run.Preprocess = stats

	ev := logging.Stage(s.Name()).Info().Int("input", stats.Input).Int("output", stats.Output)
	for _, reason := range stats.Reasons() {
		metrics.RowsDropped.WithLabelValues(reason).Add(float64(stats.Dropped[reason]))
		ev = ev.Int("dropped_"+reason, stats.Dropped[reason])
	}
	ev.Msg("preprocessed records")
	metrics.StageRows.WithLabelValues(s.Name()).Set(float64(stats.Output))
	return nil
}

// ExpandStage 按用户展开并拆分类目路径
type ExpandStage struct{}

func (s *ExpandStage) Name() string { return "expand" }
func (s *ExpandStage) Kind() Kind   { return KindTransform }

func (s *ExpandStage) Run(ctx context.Context, run *Run) error {
	rows, stats := preprocess.Expand(run.Clean)
	preprocess.SplitCategories(rows)
	run.Interactions = rows
	run.Expand = stats

	metrics.ExpanderMismatched.Set(float64(stats.MismatchedRows))
	metrics.StageRows.WithLabelValues(s.Name()).Set(float64(stats.Output))
	ev := logging.Stage(s.Name()).Info().Int("input", stats.Input).Int("output", stats.Output)
	if stats.MismatchedRows > 0 {
		ev = ev.Int("mismatched_rows", stats.MismatchedRows).Int("dropped_entries", stats.DroppedEntries)
	}
	ev.Msg("expanded users")
	return ctx.Err()
}

// EncodeStage 一级类目 one-hot 编码，得到最终训练表
type EncodeStage struct{}

func (s *EncodeStage) Name() string { return "encode" }
func (s *EncodeStage) Kind() Kind   { return KindTransform }

func (s *EncodeStage) Run(ctx context.Context, run *Run) error {
	t, err := feature.CategoryEncoder{}.Encode(run.Interactions)
	if err != nil {
		return err
	}
	run.Final = t
	metrics.StageRows.WithLabelValues(s.Name()).Set(float64(t.Len()))
	logging.Stage(s.Name()).Info().Int("rows", t.Len()).Strs("categories", t.Categories).Msg("encoded categories")
	return nil
}

// SplitStage 切分训练/测试集并构造评分关系
type SplitStage struct {
	TestSize     float64
	Seed         int64
	TrainingCols []string
}

func (s *SplitStage) Name() string { return "split" }
func (s *SplitStage) Kind() Kind   { return KindTransform }

func (s *SplitStage) Run(ctx context.Context, run *Run) error {
	rel, trainT, testT, err := dataset.TrainTestSplit(run.Final, s.TestSize, s.Seed, s.TrainingCols)
	if err != nil {
		return err
	}
	run.Relation, run.Train, run.Test = rel, trainT, testT
	logging.Stage(s.Name()).Info().Int("train", trainT.Len()).Int("test", testT.Len()).Int64("seed", s.Seed).Msg("split dataset")
	return nil
}

// CFStage 协同过滤网格搜索
type CFStage struct {
	Trainer      *train.CFTrainer
	TrainingCols []string
}

func (s *CFStage) Name() string { return "train_cf" }
func (s *CFStage) Kind() Kind   { return KindTrain }

func (s *CFStage) Run(ctx context.Context, run *Run) error {
	res, err := s.Trainer.Fit(ctx, run.Relation)
	if err != nil {
		return err
	}
	run.CF = res

	// 测试集上的 RMSE，只用于观测
	testRel, err := dataset.NewRelation(run.Test, s.TrainingCols)
	if err != nil {
		return err
	}
	if testRel.Len() > 0 {
		pred := make([]float64, testRel.Len())
		actual := make([]float64, testRel.Len())
		for i, tr := range testRel.Triples {
			pred[i] = res.Model.Estimate(tr.UserID, tr.ProductID)
			actual[i] = tr.Rating
		}
		run.CFTestRMSE = train.RMSE(pred, actual)
	}
	logging.Stage(s.Name()).Info().Float64("test_rmse", run.CFTestRMSE).Msg("evaluated cf model")
	return nil
}

// CBFStage 内容模型训练
type CBFStage struct {
	Trainer *train.ContentTrainer
}

func (s *CBFStage) Name() string { return "train_cbf" }
func (s *CBFStage) Kind() Kind   { return KindTrain }

func (s *CBFStage) Run(ctx context.Context, run *Run) error {
	tr := *s.Trainer
	tr.RunID = run.ID
	m, err := tr.Fit(ctx, run.Train)
	if err != nil {
		return err
	}
	run.CBF = m

	if run.Test.Len() > 0 {
		pred, err := m.Predict(run.Test)
		if err != nil {
			return err
		}
		actual := make([]float64, run.Test.Len())
		for i := range run.Test.Rows {
			actual[i] = run.Test.Rows[i].Rating
		}
		run.CBFTestRMSE = train.RMSE(pred, actual)
	}
	logging.Stage(s.Name()).Info().Float64("test_rmse", run.CBFTestRMSE).Msg("evaluated content model")
	return nil
}

// PublishStage 所有训练阶段成功后一次性写出产物、清单和运行记录，
// 配置了 Factors 时再把隐向量导出到在线存储
type PublishStage struct {
	Store   *artifact.Store
	Factors *recall.FactorPublisher
}

func (s *PublishStage) Name() string { return "publish" }
func (s *PublishStage) Kind() Kind   { return KindPublish }

func (s *PublishStage) Run(ctx context.Context, run *Run) error {
	log := logging.Stage(s.Name())

	type output struct {
		rel   string
		value any
		table artifact.CSVWriter
	}
	outputs := []output{
		{rel: artifact.BestCF, value: run.CF.Model},
		{rel: artifact.BestCBF, value: run.CBF},
		{rel: artifact.FeatureMeta, value: &run.CBF.Meta},
		{rel: artifact.UserSplit, table: run.Interactions},
		{rel: artifact.FinalTable, table: run.Final},
		{rel: artifact.TrainTable, table: run.Train},
		{rel: artifact.TestTable, table: run.Test},
	}
	run.Artifacts = run.Artifacts[:0]
	for _, o := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			n   int
			err error
		)
		if o.table != nil {
			n, err = s.Store.SaveTable(o.rel, o.table)
		} else {
			n, err = s.Store.Save(o.rel, o.value)
		}
		if err != nil {
			return err
		}
		metrics.ArtifactBytes.WithLabelValues(o.rel).Set(float64(n))
		run.Artifacts = append(run.Artifacts, o.rel)
		log.Debug().Str("artifact", o.rel).Int("bytes", n).Msg("artifact written")
	}

	best := run.CF.Best
	manifest := &artifact.Manifest{
		RunID:     run.ID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Rows: artifact.RowCounts{
			Raw:          run.Preprocess.Input,
			Preprocessed: run.Preprocess.Output,
			Dropped:      run.Preprocess.DroppedTotal(),
			Expanded:     run.Expand.Output,
			Train:        run.Train.Len(),
			Test:         run.Test.Len(),
		},
		CF: &artifact.CFSummary{
			NFactors: best.Point.NFactors,
			LrAll:    best.Point.LrAll,
			RegAll:   best.Point.RegAll,
			RMSE:     best.MeanRMSE,
			TestRMSE: run.CFTestRMSE,
			GridSize: len(run.CF.Scores),
		},
		CBF: &artifact.CBFSummary{
			Features:   run.CBF.NumFeatures(),
			Trees:      len(run.CBF.Booster.Trees),
			TestRMSE:   run.CBFTestRMSE,
			Categories: run.CBF.Meta.Categories,
		},
	}
	if err := manifest.AddFiles(s.Store, run.Artifacts...); err != nil {
		return err
	}
	if err := s.Store.WriteManifest(manifest); err != nil {
		return err
	}

	// 导出成功后才登记 succeeded
	if s.Factors != nil {
		if err := s.Factors.Publish(ctx, run.CF.Model, run.ID); err != nil {
			return fmt.Errorf("export factors: %w", err)
		}
		log.Info().Str("store", s.Factors.Store.Name()).Int("users", len(run.CF.Model.Users)).
			Int("items", len(run.CF.Model.Items)).Msg("exported cf factors")
	}

	reg, err := artifact.OpenRegistry(s.Store.Path(artifact.RegistryFile))
	if err != nil {
		return err
	}
	rmse := best.MeanRMSE
	recErr := reg.Record(ctx, artifact.RunRecord{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: time.Now(),
		Status:     StatusSucceeded,
		RowsTrain:  run.Train.Len(),
		RowsTest:   run.Test.Len(),
		CFParams:   best.Point.String(),
		CFRMSE:     &rmse,
	})
	if err := reg.Close(); err != nil && recErr == nil {
		recErr = core.NewArtifactError(artifact.RegistryFile, err)
	}
	if recErr != nil {
		return recErr
	}

	log.Info().Str("root", s.Store.Root()).Int("artifacts", len(run.Artifacts)).Msg("artifacts published")
	return nil
}
