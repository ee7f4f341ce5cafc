package models

import "time"

// Principal is an authenticated identity, e.g. a wallet address.
// It has no internal structure; it is only compared and used as a key.
type Principal string

// Account is the per-principal ledger record.
type Account struct {
	Principal            Principal `json:"principal"`
	Verified             bool      `json:"verified"`
	ProjectCount         int       `json:"project_count"`
	VerifiedProjectCount uint64    `json:"verified_project_count"`
}

// Project is a completed piece of work registered for a user.
// Its position in the user's project list is its identity.
type Project struct {
	Index int `json:"index"`
	// Client is informational only; it is never checked against the caller.
	Client      Principal `json:"client"`
	ContentHash string    `json:"content_hash"`
	Link        string    `json:"link"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review is a client's rating of a freelancer for one verified project.
type Review struct {
	Reviewer    Principal `json:"reviewer"`
	ContentHash string    `json:"content_hash"`
	Rating      uint8     `json:"rating"`
	CommentHash string    `json:"comment_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Badge is a non-transferable achievement token bound to Owner forever.
type Badge struct {
	ID    uint64    `json:"id"`
	Owner Principal `json:"owner"`
	URI   string    `json:"uri"`
	// Milestone is the verified-project count that triggered the mint,
	// or zero for a manual mint.
	Milestone uint64    `json:"milestone,omitempty"`
	MintedAt  time.Time `json:"minted_at"`
}

// ---- Request / Response DTOs ----

type RegisterRequest struct {
	Principal Principal `json:"principal"`
	Password  string    `json:"password"`
	// InviteCode is the one-time code the owner issued for Principal.
	InviteCode string `json:"invite_code"`
}

type InviteRequest struct {
	Principal Principal `json:"principal"`
}

type InviteResponse struct {
	Principal Principal `json:"principal"`
	Code      string    `json:"code"`
}

type LoginRequest struct {
	Principal Principal `json:"principal"`
	Password  string    `json:"password"`
}

type LoginResponse struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}

type SetVerifiedRequest struct {
	Verified bool `json:"verified"`
}

type AddProjectRequest struct {
	Client      Principal `json:"client"`
	ContentHash string    `json:"content_hash"`
	Link        string    `json:"link"`
}

type AddProjectResponse struct {
	Index int `json:"index"`
}

type SubmitReviewRequest struct {
	ContentHash string `json:"content_hash"`
	// Rating is bounded only by its type; values outside 0..255 fail to decode.
	Rating      uint8  `json:"rating"`
	CommentHash string `json:"comment_hash"`
}

type MintBadgeRequest struct {
	URI string `json:"uri"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type HashStatusResponse struct {
	ContentHash string `json:"content_hash"`
	Verified    bool   `json:"verified"`
}
