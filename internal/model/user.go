// Package model はドメインモデルを定義する。
package model

import "time"

// User はメールアドレスとパスワードで登録されたユーザーを表す。
// Emailは大文字小文字を区別する一意キーとして扱う。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
