package wall

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wgwall/walld/internal/jsondb"
	"github.com/wgwall/walld/internal/wall/images"
)

// Sentinel errors for the mutation operations.
var (
	ErrEmptyContent    = errors.New("content is required")
	ErrEmptyPostID     = errors.New("post id is required")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
)

// ValidationError marks a request rejected before any mutation happened.
type ValidationError struct {
	Err error
}

func (v *ValidationError) Error() string {
	return v.Err.Error()
}

func (v *ValidationError) Unwrap() error {
	return v.Err
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}

// LikeKind selects the target of a Like call.
type LikeKind string

const (
	LikePost    LikeKind = "post"
	LikeComment LikeKind = "comment"
)

// Recorder receives a one-line description of each successful mutation.
// Used to keep a history trail of the data documents.
type Recorder interface {
	Record(message string)
}

// PostFields is the caller-supplied part of a new post.
type PostFields struct {
	Name     string
	Portrait string
	Content  string
	Device   string
}

// CommentFields is the caller-supplied part of a new comment.
type CommentFields struct {
	Name     string
	Portrait string
	Content  string
	Device   string
}

// Service owns the posts document and every operation that reads or
// mutates it. All writes funnel through jsondb.Doc.Mutate, so id
// allocation and counter increments are serialized behind its lock.
type Service struct {
	doc      *jsondb.Doc[*Post]
	store    *images.Store
	cache    *viewCache
	ttl      time.Duration
	recorder Recorder
	now      func() time.Time
}

// NewService wraps an opened posts document. cachePath is where the
// sorted-view artifact is persisted; st receives image uploads.
func NewService(doc *jsondb.Doc[*Post], st *images.Store, cachePath string) *Service {
	return &Service{
		doc:   doc,
		store: st,
		cache: newViewCache(doc, cachePath),
		ttl:   DefaultCacheTTL,
		now:   time.Now,
	}
}

// SetCacheTTL overrides the default view max-age.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	s.ttl = ttl
}

// SetRecorder installs the mutation history recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Page returns one page of the sorted, filtered view. It never fails:
// an out-of-range page or an empty collection is an empty result.
func (s *Service) Page(f Filter, page, perPage int) PageResult {
	return Paginate(f.Apply(s.cache.View(s.ttl)), page, perPage)
}

// InvalidateView drops the cached sorted view. Called by the document
// watcher when the file changes underneath the process.
func (s *Service) InvalidateView() {
	s.cache.Invalidate()
}

// Publish validates, stores the attached images, and inserts a new post
// at the head of the collection. If the document save fails after
// images were already promoted, the images are removed again.
func (s *Service) Publish(fields PostFields, uploads []images.Upload) (*Post, error) {
	if strings.TrimSpace(fields.Content) == "" {
		return nil, invalid(ErrEmptyContent)
	}
	if err := images.Validate(uploads); err != nil {
		return nil, invalid(err)
	}
	var post *Post
	var saved []string
	err := s.doc.Mutate(func(rows []*Post) ([]*Post, error) {
		pid := jsondb.NextID(PostIDWidth, postIDs(rows))
		paths, err := s.store.SaveAll("post_"+pid, uploads)
		if err != nil {
			return nil, err
		}
		saved = paths
		post = &Post{
			PID:      pid,
			Name:     fields.Name,
			Portrait: fields.Portrait,
			Content:  fields.Content,
			Date:     s.now().Format(DateFormat),
			Images:   paths,
			Comments: []Comment{},
			Device:   fields.Device,
		}
		return append([]*Post{post}, rows...), nil
	})
	if err != nil {
		s.store.Remove(saved)
		return nil, fmt.Errorf("failed to publish post: %w", err)
	}
	s.afterWrite("publish post " + post.PID)
	return post, nil
}

// Comment validates and inserts a new comment at the head of the target
// post's comment list. The comment id is allocated across all posts'
// comments, not per post.
func (s *Service) Comment(pid string, fields CommentFields, uploads []images.Upload) (*Comment, error) {
	if strings.TrimSpace(pid) == "" {
		return nil, invalid(ErrEmptyPostID)
	}
	if strings.TrimSpace(fields.Content) == "" {
		return nil, invalid(ErrEmptyContent)
	}
	if err := images.Validate(uploads); err != nil {
		return nil, invalid(err)
	}
	var comment Comment
	var saved []string
	err := s.doc.Mutate(func(rows []*Post) ([]*Post, error) {
		target := findPost(rows, pid)
		if target == nil {
			return nil, ErrPostNotFound
		}
		cid := jsondb.NextID(CommentIDWidth, commentIDs(rows))
		paths, err := s.store.SaveAll("comment_"+cid, uploads)
		if err != nil {
			return nil, err
		}
		saved = paths
		comment = Comment{
			CID:      cid,
			Name:     fields.Name,
			Portrait: fields.Portrait,
			Content:  fields.Content,
			Date:     s.now().Format(DateFormat),
			Images:   paths,
			Device:   fields.Device,
		}
		target.Comments = append([]Comment{comment}, target.Comments...)
		return rows, nil
	})
	if err != nil {
		s.store.Remove(saved)
		if errors.Is(err, ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to publish comment: %w", err)
	}
	s.afterWrite("comment " + comment.CID + " on post " + pid)
	return comment.Clone(), nil
}

// Like increments a post's or comment's like counter by one and returns
// the new count. Likes are intentionally not deduplicated per user.
func (s *Service) Like(kind LikeKind, id string) (int, error) {
	if strings.TrimSpace(id) == "" {
		return 0, invalid(errors.New("id is required"))
	}
	likes := 0
	err := s.doc.Mutate(func(rows []*Post) ([]*Post, error) {
		switch kind {
		case LikePost:
			p := findPost(rows, id)
			if p == nil {
				return nil, ErrPostNotFound
			}
			p.Likes++
			likes = p.Likes
		case LikeComment:
			c := findComment(rows, id)
			if c == nil {
				return nil, ErrCommentNotFound
			}
			c.Likes++
			likes = c.Likes
		default:
			return nil, invalid(fmt.Errorf("unknown like kind %q", kind))
		}
		return rows, nil
	})
	if err != nil {
		if errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrCommentNotFound) {
			return 0, err
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to record like: %w", err)
	}
	s.afterWrite(fmt.Sprintf("like %s %s", kind, id))
	return likes, nil
}

// Comments returns the full comment list of one post, newest first.
func (s *Service) Comments(pid string) ([]Comment, error) {
	if strings.TrimSpace(pid) == "" {
		return nil, invalid(ErrEmptyPostID)
	}
	for p := range s.doc.All() {
		if p.PID == pid {
			if p.Comments == nil {
				return []Comment{}, nil
			}
			return p.Comments, nil
		}
	}
	return nil, ErrPostNotFound
}

func (s *Service) afterWrite(msg string) {
	s.cache.Invalidate()
	if s.recorder != nil {
		s.recorder.Record(msg)
	}
	slog.Info("Saved posts", "op", msg)
}

func findPost(rows []*Post, pid string) *Post {
	for _, p := range rows {
		if p.PID == pid {
			return p
		}
	}
	return nil
}

func findComment(rows []*Post, cid string) *Comment {
	for _, p := range rows {
		for i := range p.Comments {
			if p.Comments[i].CID == cid {
				return &p.Comments[i]
			}
		}
	}
	return nil
}

func postIDs(rows []*Post) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for _, p := range rows {
			if !yield(p.PID) {
				return
			}
		}
	}
}

func commentIDs(rows []*Post) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for _, p := range rows {
			for _, c := range p.Comments {
				if !yield(c.CID) {
					return
				}
			}
		}
	}
}
