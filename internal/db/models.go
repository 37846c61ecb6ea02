package db

import "time"

// Post maps canon.posts. Posts, pages and attachments share the table;
// Type distinguishes them, mirroring how the content model stores them.
type Post struct {
	PostID      int64      `gorm:"column:post_id;primaryKey;autoIncrement"`
	PostUUID    string     `gorm:"column:post_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Slug        string     `gorm:"column:slug;type:text;not null;index:idx_posts_slug"`
	Title       string     `gorm:"column:title;type:text;not null;default:''"`
	Type        string     `gorm:"column:type;type:text;not null;default:post"`
	Status      string     `gorm:"column:status;type:text;not null;default:public"`
	ParentID    *int64     `gorm:"column:parent_id;type:bigint"`
	FileURL     *string    `gorm:"column:file_url;type:text"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Post) TableName() string { return "canon.posts" }

// Term maps canon.terms.
type Term struct {
	TermID   int64  `gorm:"column:term_id;primaryKey;autoIncrement"`
	Slug     string `gorm:"column:slug;type:text;not null;index:idx_terms_slug"`
	Taxonomy string `gorm:"column:taxonomy;type:text;not null"`
	Name     string `gorm:"column:name;type:text;not null;default:''"`
}

func (Term) TableName() string { return "canon.terms" }

// TermAssignment maps canon.term_assignments. TermOrder drives the
// natural ordering a post's terms come back in; the first term of a
// taxonomy is canonical for that post.
type TermAssignment struct {
	PostID    int64 `gorm:"column:post_id;primaryKey"`
	TermID    int64 `gorm:"column:term_id;primaryKey"`
	TermOrder int   `gorm:"column:term_order;type:integer;not null;default:0"`
}

func (TermAssignment) TableName() string { return "canon.term_assignments" }

// User maps canon.users. Viewer accounts gate access to non-public
// entities during resolution.
type User struct {
	UserID             int64      `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username           string     `gorm:"column:username;type:text;not null;unique"`
	PasswordHash       string     `gorm:"column:password_hash;type:text;not null"`
	MustChangePassword bool       `gorm:"column:must_change_password;not null;default:false"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastLoginAt        *time.Time `gorm:"column:last_login_at;type:timestamptz"`
}

func (User) TableName() string { return "canon.users" }

// Session maps canon.sessions.
type Session struct {
	SessionID  string    `gorm:"column:session_id;type:text;primaryKey"`
	UserID     int64     `gorm:"column:user_id;type:bigint;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;type:timestamptz;not null"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;type:timestamptz;not null;default:now()"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Session) TableName() string { return "canon.sessions" }

func autoMigrateModels() []any {
	return []any{
		&Post{},
		&Term{},
		&TermAssignment{},
		&User{},
		&Session{},
	}
}
