package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/preprocess"
	"github.com/rushteam/recpipe/train"
)

// Run 一次训练运行的全部中间结果，只在内存中流转，Publish 阶段才落盘
type Run struct {
	ID        string
	StartedAt time.Time

	Raw          []dataset.RawRecord
	Clean        []dataset.Interaction
	Preprocess   preprocess.PreprocessStats
	Interactions dataset.Interactions
	Expand       preprocess.ExpandStats

	Final    *dataset.Table
	Relation *dataset.Relation
	Train    *dataset.Table
	Test     *dataset.Table

	CF          *train.CFResult
	CFTestRMSE  float64
	CBF         *model.ContentModel
	CBFTestRMSE float64

	// Artifacts Publish 阶段写出的相对路径
	Artifacts []string
}

func NewRun() *Run {
	return &Run{ID: uuid.NewString(), StartedAt: time.Now()}
}
