package models

// Comment belongs to a post. PostID is not a foreign key: comments may outlive their post.
type Comment struct {
	BaseModel
	AuthorID uint   `gorm:"index;not null" json:"authorId"`
	PostID   uint   `gorm:"index;not null" json:"postId"`
	Body     string `gorm:"type:text" json:"body"`
}

func (Comment) TableName() string {
	return "comments"
}
