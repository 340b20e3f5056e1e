// Package config 加载训练流水线的 YAML 配置。
//
// 配置结构与历史 default.yaml 保持一致（model_building 为列表形式），
// 额外的 key 都是可选的，缺省时使用 Default* 常量。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recpipe/core"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "CONFIG_PATH"

// DefaultPath 未指定时的配置文件路径
const DefaultPath = "config/default.yaml"

// 默认值
const (
	DefaultArtifactRoot   = "artifacts"
	DefaultEpochs         = 20
	DefaultFolds          = 5
	DefaultNEstimators    = 100
	DefaultMaxDepth       = 6
	DefaultLearningRate   = 0.3
	DefaultLambda         = 1.0
	DefaultMinChildWeight = 1.0
	DefaultRedisKeyPrefix = "recpipe:cf"
)

// Config 是整个训练流水线的配置
type Config struct {
	DataLoader    DataLoaderConfig `yaml:"data_loader"`
	TrainTest     TrainTestConfig  `yaml:"train_test_config"`
	ModelBuilding ModelBuilding    `yaml:"model_building"`
	AWS           BucketConfig     `yaml:"aws"`
	GCS           BucketConfig     `yaml:"gcs"`
	Artifacts     ArtifactsConfig  `yaml:"artifacts"`
	Redis         RedisConfig      `yaml:"redis"`
	Logging       LoggingConfig    `yaml:"logging"`
	Metrics       MetricsConfig    `yaml:"metrics"`
}

type DataLoaderConfig struct {
	Path string `yaml:"path"`
	// Filter 可选 CEL 表达式，变量名 row，返回 false 的行被剔除
	Filter string `yaml:"filter"`
}

type TrainTestConfig struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState int64   `yaml:"random_state"`

	// TrainingCols 依次为用户列、物品列、评分列
	TrainingCols []string `yaml:"training_cols"`
}

// BucketConfig 对象存储配置；AWS 额外使用 Region/Endpoint
type BucketConfig struct {
	BucketName string `yaml:"bucket_name"`
	Prefix     string `yaml:"prefix"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
}

type ArtifactsConfig struct {
	Root string `yaml:"root"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Textfile 指标落盘路径，为空则不写
	Textfile string `yaml:"textfile"`
}

// Load 从 YAML 文件加载配置并填充默认值、校验。
// 文件不存在或字段非法时返回 ConfigurationError。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewConfigError("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "parse yaml", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolvePath 依次取 flag、$CONFIG_PATH、DefaultPath
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyDefaults() {
	if c.Artifacts.Root == "" {
		c.Artifacts.Root = DefaultArtifactRoot
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	cf := &c.ModelBuilding.CF
	if cf.Model == "" {
		cf.Model = "SVD"
	}
	if cf.Options.Epochs <= 0 {
		cf.Options.Epochs = DefaultEpochs
	}
	if cf.Options.Folds <= 0 {
		cf.Options.Folds = DefaultFolds
	}
	if cf.Options.Workers <= 0 {
		cf.Options.Workers = runtime.NumCPU()
	}
	if cf.Options.Seed == nil {
		seed := c.TrainTest.RandomState
		cf.Options.Seed = &seed
	}

	b := &c.ModelBuilding.CBF.Booster
	if b.NEstimators <= 0 {
		b.NEstimators = DefaultNEstimators
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = DefaultMaxDepth
	}
	if b.LearningRate <= 0 {
		b.LearningRate = DefaultLearningRate
	}
	if b.Lambda == nil {
		l := DefaultLambda
		b.Lambda = &l
	}
	if b.MinChildWeight == nil {
		w := DefaultMinChildWeight
		b.MinChildWeight = &w
	}
}

// Validate 校验必填项与取值范围
func (c *Config) Validate() error {
	if c.DataLoader.Path == "" {
		return core.NewConfigError("data_loader.path is required")
	}
	if c.TrainTest.TestSize <= 0 || c.TrainTest.TestSize >= 1 {
		return core.NewConfigError("train_test_config.test_size must be in (0,1), got %v", c.TrainTest.TestSize)
	}
	if len(c.TrainTest.TrainingCols) != 3 {
		return core.NewConfigError("train_test_config.training_cols must name user, item and rating columns, got %v",
			c.TrainTest.TrainingCols)
	}

	cf := c.ModelBuilding.CF
	if cf.Model != "SVD" {
		return core.NewConfigError("model_building CF.model %q is not supported", cf.Model)
	}
	if len(cf.Params.NFactors) == 0 || len(cf.Params.LrAll) == 0 || len(cf.Params.RegAll) == 0 {
		return core.NewConfigError("model_building CF.params requires non-empty n_factors, lr_all and reg_all")
	}
	for _, n := range cf.Params.NFactors {
		if n <= 0 {
			return core.NewConfigError("model_building CF.params.n_factors must be positive, got %d", n)
		}
	}

	cbf := c.ModelBuilding.CBF
	if len(cbf.NumericParams) == 0 {
		return core.NewConfigError("model_building CBF.numeric_params is required")
	}
	if len(cbf.TextParams) == 0 {
		return core.NewConfigError("model_building CBF.text_params is required")
	}
	for _, col := range append(append([]string{}, cbf.NumericParams...), cbf.TextParams...) {
		if col == "rating" {
			return core.NewConfigError("model_building CBF cannot use the label column rating as a feature")
		}
	}
	return nil
}

// RemoteBackend 返回远端同步使用的后端：配置了 aws.bucket_name 用 s3，
// 否则配置了 gcs.bucket_name 用 gcs，都没有返回空串
func (c *Config) RemoteBackend() string {
	switch {
	case c.AWS.BucketName != "":
		return "s3"
	case c.GCS.BucketName != "":
		return "gcs"
	default:
		return ""
	}
}
