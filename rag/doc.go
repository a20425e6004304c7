// Package rag 实现检索编排流水线：
// 查询增强、实体识别、多源并发检索（知识库 / 图 / 网络搜索）、
// 过滤排序与上下文组装。
//
// 核心入口是 Orchestrator.Retrieve：接受一次 Query，
// 返回融合三个来源的 ReferenceBundle；
// ContextAssembler.Assemble 把 bundle 渲染为最终的问答提示词。
//
// 失败语义:单个数据源故障只降级该来源，其余来源正常返回；
// 查询增强与实体识别都是尽力而为的优化，失败时退回原始查询。
package rag
