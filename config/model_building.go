package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelBuilding 对应 YAML 中的 model_building 列表：
//
//	model_building:
//	  - CF:
//	      - model: SVD
//	      - params: {n_factors: [50, 100], lr_all: [0.005], reg_all: [0.02]}
//	  - CBF:
//	      - numeric_params: [discounted_price, discount_percentage]
//	        text_params: review_title
//
// CF 下的多个条目会被合并，后出现的非零字段覆盖先出现的。
type ModelBuilding struct {
	CF  CFConfig
	CBF CBFConfig
}

type CFConfig struct {
	Model   string    `yaml:"model"`
	Params  CFGrid    `yaml:"params"`
	Options CFOptions `yaml:"options"`
}

// CFGrid 超参数网格，笛卡尔积按 n_factors > lr_all > reg_all 的嵌套顺序展开
type CFGrid struct {
	NFactors []int     `yaml:"n_factors"`
	LrAll    []float64 `yaml:"lr_all"`
	RegAll   []float64 `yaml:"reg_all"`
}

type CFOptions struct {
	Epochs  int `yaml:"n_epochs"`
	Folds   int `yaml:"cv"`
	Workers int `yaml:"workers"`

	// Seed 为空时取 train_test_config.random_state
	Seed *int64 `yaml:"seed"`
}

type CBFConfig struct {
	NumericParams []string      `yaml:"numeric_params"`
	TextParams    StringList    `yaml:"text_params"`
	Booster       BoosterConfig `yaml:"booster"`
}

type BoosterConfig struct {
	NEstimators    int      `yaml:"n_estimators"`
	MaxDepth       int      `yaml:"max_depth"`
	LearningRate   float64  `yaml:"learning_rate"`
	Lambda         *float64 `yaml:"lambda"`
	MinChildWeight *float64 `yaml:"min_child_weight"`
}

// StringList 既接受单个字符串也接受字符串列表
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = StringList{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

func (m *ModelBuilding) UnmarshalYAML(node *yaml.Node) error {
	var sections []map[string]yaml.Node
	if err := node.Decode(&sections); err != nil {
		return fmt.Errorf("model_building: %w", err)
	}
	for _, section := range sections {
		for name, body := range section {
			switch name {
			case "CF":
				var entries []CFConfig
				if err := body.Decode(&entries); err != nil {
					return fmt.Errorf("model_building.CF: %w", err)
				}
				for _, e := range entries {
					m.CF.merge(e)
				}
			case "CBF":
				var entries []CBFConfig
				if err := body.Decode(&entries); err != nil {
					return fmt.Errorf("model_building.CBF: %w", err)
				}
				if len(entries) > 0 {
					m.CBF = entries[0]
				}
			default:
				return fmt.Errorf("model_building: unknown section %q", name)
			}
		}
	}
	return nil
}

func (c *CFConfig) merge(o CFConfig) {
	if o.Model != "" {
		c.Model = o.Model
	}
	if len(o.Params.NFactors) > 0 {
		c.Params.NFactors = o.Params.NFactors
	}
	if len(o.Params.LrAll) > 0 {
		c.Params.LrAll = o.Params.LrAll
	}
	if len(o.Params.RegAll) > 0 {
		c.Params.RegAll = o.Params.RegAll
	}
	if o.Options.Epochs > 0 {
		c.Options.Epochs = o.Options.Epochs
	}
	if o.Options.Folds > 0 {
		c.Options.Folds = o.Options.Folds
	}
	if o.Options.Workers > 0 {
		c.Options.Workers = o.Options.Workers
	}
	if o.Options.Seed != nil {
		c.Options.Seed = o.Options.Seed
	}
}
