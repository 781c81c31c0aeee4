package core

import "time"

type AppConfig interface {
	GetRuntimePath() string
	GetDatabasePath() string
	GetFAQFilePath() string
	GetStoreTimeout() time.Duration
	IsTelegramSelected() bool
}

type AccessConfig interface {
	IsAdmin(userID int64) bool
}
