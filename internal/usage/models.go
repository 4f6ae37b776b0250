package usage

import "time"

// Kind names which counter a tracked message increments.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

func (k Kind) Valid() bool {
	return k == KindRequest || k == KindResponse
}

func (k Kind) column() string {
	if k == KindResponse {
		return "response_count"
	}
	return "request_count"
}

// Counter is the per-identity message tally. UserID is the identity
// provider's opaque user id; a missing row means zero counts.
type Counter struct {
	UserID        string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	RequestCount  int64     `gorm:"not null;default:0" json:"requestCount"`
	ResponseCount int64     `gorm:"not null;default:0" json:"responseCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Counter) TableName() string { return "user_message_counts" }

// Exists reports whether the counter was read from a stored row.
func (c Counter) Exists() bool {
	return !c.CreatedAt.IsZero()
}
