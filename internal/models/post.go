package models

// Post is an HTML fragment published by a user. Body may embed media via src attributes.
type Post struct {
	BaseModel
	AuthorID uint   `gorm:"index;not null" json:"authorId"`
	Body     string `gorm:"type:text" json:"body"`
}

func (Post) TableName() string {
	return "posts"
}

// PostWithAuthor is returned by feed queries.
type PostWithAuthor struct {
	Post
	Author *UserBasicInfo `json:"author"`
}
