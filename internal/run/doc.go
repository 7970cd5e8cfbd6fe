// Package run 管理意图执行请求的排队、状态跟踪与异步处理。每条执行记录
// 对应一次完整的意图管线运行，失败即终态，不做重试。
package run
