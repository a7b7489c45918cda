// Package security はアプリケーションのセキュリティ機能を提供する。
//
// タスクのテキストはプレーンテキストとしてそのまま保存する。
// MarkupDetector はHTMLマークアップを含む入力を検出し、書き換えずに拒否するために使う。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はHTMLマークアップ検出のインターフェース。
type MarkupDetector interface {
	// ContainsMarkup はタグとして解釈される部分を含む場合にtrueを返す。
	// "a < b" や "Tom & Jerry"、エスケープ済みの "&lt;div&gt;" はマークアップとみなさない。
	ContainsMarkup(s string) bool
}

// markupDetector はbluemondayのStrictPolicyによるMarkupDetector実装。
// ポリシーはスレッドセーフに共有できる。
type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorを生成する。
func NewMarkupDetector() *markupDetector {
	return &markupDetector{policy: bluemonday.StrictPolicy()}
}

// ContainsMarkup はStrictPolicyで除去される部分があるかを判定する。
// ポリシーは文字参照を正規化して出力するため、両辺をアンエスケープして比較する。
func (d *markupDetector) ContainsMarkup(s string) bool {
	if s == "" {
		return false
	}
	stripped := html.UnescapeString(d.policy.Sanitize(s))
	return stripped != html.UnescapeString(s)
}
