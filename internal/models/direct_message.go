package models

// DirectMessage 代表两个用户之间的私信。
type DirectMessage struct {
	BaseModel
	SenderID    uint   `gorm:"index;not null" json:"senderId"`
	RecipientID uint   `gorm:"index;not null" json:"recipientId"`
	Body        string `gorm:"type:text" json:"body"`
}

func (DirectMessage) TableName() string {
	return "direct_messages"
}
