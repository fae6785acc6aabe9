package model

import (
	"time"
)

type Base struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
