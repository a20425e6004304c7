package rag

import "github.com/BaSui01/knowflow/types"

// WindowByRounds 截取最近 rounds 轮对话。
// 一轮为一问一答两条消息，因此保留尾部 2*rounds 条。
// rounds <= 0 表示不截取。
func WindowByRounds(history []types.Message, rounds int) []types.Message {
	if rounds <= 0 {
		return history
	}
	keep := rounds * 2
	if len(history) <= keep {
		return history
	}
	return history[len(history)-keep:]
}
