// Package artifact 负责把训练产物写入本地产物目录并读回：
// 模型与元数据为 JSON，数据快照为 CSV，另有运行清单和 SQLite 运行记录。
package artifact

import "path"

// 产物目录下的固定布局，路径均相对产物根目录
const (
	DirCF   = "Collaborative_Filtering"
	DirCBF  = "Content_Based_Filtering"
	DirData = "Data"
)

var (
	BestCF       = path.Join(DirCF, "best_cf.json")
	BestCBF      = path.Join(DirCBF, "best_cbf.json")
	FeatureMeta  = path.Join(DirCBF, "feature_meta.json")
	UserSplit    = path.Join(DirData, "user_split.csv")
	FinalTable   = path.Join(DirData, "final_df.csv")
	TrainTable   = path.Join(DirData, "train_data.csv")
	TestTable    = path.Join(DirData, "test_data.csv")
	ManifestFile = "manifest.yaml"
	RegistryFile = "runs.db"
)
