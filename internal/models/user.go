package models

// Visibility 控制用户帖子对谁可见。
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
)

// Valid reports whether v is a known visibility mode.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityFriends
}

// User 代表系统中的用户。Username is the identity key and never changes.
type User struct {
	BaseModel
	Username     string     `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Avatar       string     `gorm:"type:varchar(255)" json:"avatar,omitempty"` // filename under the avatar dir
	Visibility   Visibility `gorm:"type:varchar(20);not null;default:'public'" json:"visibility"`
}

// UserBasicInfo holds minimal public information about a user.
type UserBasicInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
