package models

import "time"

type Account struct {
	ID                     string
	Username               string
	Email                  string
	PassHash               []byte
	IsVerified             bool
	VerificationCode       string
	VerificationCodeExpiry time.Time
	IsAcceptingMessages    bool
	CreatedAt              time.Time
	Messages               []Message
}

// * CodeExpired reports whether the pending verification code is past its expiry at now.
func (a *Account) CodeExpired(now time.Time) bool {
	return now.After(a.VerificationCodeExpiry)
}

type Message struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal is the identity carried by a valid session token.
type Principal struct {
	ID                  string
	Username            string
	IsVerified          bool
	IsAcceptingMessages bool
	TokenID             string
	ExpiresAt           time.Time
}

const PurposeVerification = "verification"

// Notification is the payload handed to the notification sender (and put on the queue).
type Notification struct {
	Email    string `json:"to"`
	Username string `json:"username"`
	Code     string `json:"code"`
	Purpose  string `json:"purpose"`
}
