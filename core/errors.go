package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）、消息（Message）和可选的底层错误（Err）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 使用场景：
//   - 配置错误：ModuleConfig
//   - 数据质量：ModuleData（行级问题只计数，表级问题才返回）
//   - Schema 漂移：ModuleSchema + SCHEMA_DRIFT
//   - 产物读写：ModuleArtifact
//   - 预测：ModulePredict（未知用户/商品）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "SCHEMA_DRIFT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "config", "artifact"）
	Err     error  // 底层错误，可为 nil
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
	ErrorCodeSchemaDrift   = "SCHEMA_DRIFT"   // 推理期特征集与训练期不一致
	ErrorCodeIO            = "IO"             // 读写失败
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleConfig   = "config"
	ModuleData     = "data"
	ModuleSchema   = "schema"
	ModuleArtifact = "artifact"
	ModulePredict  = "predict"
	ModuleRemote   = "remote"
)

// NewConfigError 创建配置错误（缺失 key、取值非法、文件不存在）
func NewConfigError(format string, args ...any) *DomainError {
	return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// NewDataError 创建数据质量错误
func NewDataError(format string, args ...any) *DomainError {
	return NewDomainError(ModuleData, ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// NewSchemaDriftError 创建 Schema 漂移错误
func NewSchemaDriftError(format string, args ...any) *DomainError {
	return NewDomainError(ModuleSchema, ErrorCodeSchemaDrift, fmt.Sprintf(format, args...))
}

// NewArtifactError 创建产物读写错误
func NewArtifactError(path string, err error) *DomainError {
	return WrapDomainError(ModuleArtifact, ErrorCodeIO, "artifact "+path, err)
}

// NewPredictionError 创建预测错误，userID 或 productID 在训练集中不存在
func NewPredictionError(userID, productID, reason string) *DomainError {
	return NewDomainError(ModulePredict, ErrorCodeNotFound,
		fmt.Sprintf("predict user=%q product=%q: %s", userID, productID, reason))
}

// NewRemoteError 创建远端同步错误
func NewRemoteError(key string, err error) *DomainError {
	return WrapDomainError(ModuleRemote, ErrorCodeUnavailable, "remote "+key, err)
}

func isModule(err error, module string) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == module
}

// IsConfigurationError 检查是否为配置错误
func IsConfigurationError(err error) bool { return isModule(err, ModuleConfig) }

// IsDataQuality 检查是否为数据质量错误
func IsDataQuality(err error) bool { return isModule(err, ModuleData) }

// IsSchemaDrift 检查是否为 Schema 漂移错误
func IsSchemaDrift(err error) bool { return isModule(err, ModuleSchema) }

// IsArtifactIO 检查是否为产物读写错误
func IsArtifactIO(err error) bool { return isModule(err, ModuleArtifact) }

// IsPredictionError 检查是否为预测错误
func IsPredictionError(err error) bool { return isModule(err, ModulePredict) }

// IsRemoteError 检查是否为远端同步错误
func IsRemoteError(err error) bool { return isModule(err, ModuleRemote) }

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
