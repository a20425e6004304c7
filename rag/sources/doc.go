// Package sources 提供外部数据源的具体适配器实现。
// 每个适配器满足 rag 包定义的检索接口，内部处理认证、限流与重试。
package sources
