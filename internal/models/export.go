package models

import (
	"time"
)

// Export запись об успешной выгрузке CSV в объектное хранилище
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"createdAt"`
}
