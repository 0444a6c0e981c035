// Package e2e 以真实组件与夹具文件覆盖端到端场景（仅测试）。
package e2e
