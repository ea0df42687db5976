package util

const DateFormat = "2006-01-02"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// 及格线与薄弱知识点阈值（百分比）
const (
	PassScore          = 60
	WeakTopicThreshold = 60
)

// 头像上传
const (
	MimeImage     = "image/"
	AvatarMaxSize = 5 << 20
	AvatarSize    = 256
)

var (
	AllowedImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}
)
