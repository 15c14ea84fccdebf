// Package wall implements the post/comment store of the social wall.
//
// All posts live in a single JSON document behind [jsondb.Doc]; reads go
// through a TTL-bounded sorted view (cache.go) and writes through the
// Service mutation API (service.go), which is the only code allowed to
// rewrite the document.
package wall

import "time"

// DateFormat is the fixed timestamp format used in the stored documents.
const DateFormat = "2006-01-02 15:04:05"

// Widths of the zero-padded numeric id spaces. Display conventions, not
// capacity limits.
const (
	PostIDWidth    = 6
	CommentIDWidth = 7
)

// Post is a top-level user-authored record with embedded comments.
//
// Field names are part of the on-disk document layout and must not change.
type Post struct {
	PID      string    `json:"pid" jsonschema:"description=6-digit zero-padded post id, unique and monotonically increasing"`
	Name     string    `json:"pname" jsonschema:"description=Author display name"`
	Portrait string    `json:"portrait" jsonschema:"description=Author portrait path"`
	Content  string    `json:"content" jsonschema:"description=Free text, may embed #tag# markers"`
	Date     string    `json:"pdate" jsonschema:"description=Creation timestamp, 2006-01-02 15:04:05"`
	Likes    int       `json:"plikes" jsonschema:"description=Non-negative like counter"`
	Images   []string  `json:"images" jsonschema:"description=Stored image paths, 0-3 entries"`
	Comments []Comment `json:"comments" jsonschema:"description=Comments, newest first"`
	Device   string    `json:"device" jsonschema:"description=Client device label, may be empty"`
}

// Comment is a reply attached to exactly one post. Comment ids are
// globally unique across all posts, not per-post.
type Comment struct {
	CID      string   `json:"com_cid" jsonschema:"description=7-digit zero-padded comment id, globally unique"`
	Name     string   `json:"com_pname" jsonschema:"description=Author display name"`
	Portrait string   `json:"com_portrait" jsonschema:"description=Author portrait path"`
	Content  string   `json:"com_content" jsonschema:"description=Comment text"`
	Date     string   `json:"com_date" jsonschema:"description=Creation timestamp, 2006-01-02 15:04:05"`
	Likes    int      `json:"clikes" jsonschema:"description=Non-negative like counter"`
	Images   []string `json:"com_images" jsonschema:"description=Stored image paths, 0-3 entries"`
	Device   string   `json:"com_device" jsonschema:"description=Client device label, may be empty"`
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	c := *p
	if p.Images != nil {
		c.Images = make([]string, len(p.Images))
		copy(c.Images, p.Images)
	}
	if p.Comments != nil {
		c.Comments = make([]Comment, len(p.Comments))
		for i := range p.Comments {
			c.Comments[i] = *p.Comments[i].Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of the comment.
func (c *Comment) Clone() *Comment {
	cc := *c
	if c.Images != nil {
		cc.Images = make([]string, len(c.Images))
		copy(cc.Images, c.Images)
	}
	return &cc
}

// date parses the post timestamp. Unparseable dates sort last.
func (p *Post) date() time.Time {
	t, err := time.ParseInLocation(DateFormat, p.Date, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
