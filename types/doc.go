// Package types 定义 knowflow 各包共享的基础类型：
// 对话消息（Message/Role）和统一的结构化错误（Error/ErrorCode）。
//
// 错误码覆盖检索引擎的完整故障分类：单一数据源不可用（SOURCE_UNAVAILABLE）、
// 查询增强失败（ENHANCEMENT_FAILED）、配置错误（CONFIGURATION_ERROR）等。
// 前两类在检索主路径内部降级恢复，配置错误上抛给调用方。
package types
