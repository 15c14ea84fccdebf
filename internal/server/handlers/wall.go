package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/wgwall/walld/internal/server/dto"
	"github.com/wgwall/walld/internal/wall"
	"github.com/wgwall/walld/internal/wall/images"
)

// multipartMemory is the in-memory threshold for parsing uploads.
const multipartMemory = 8 << 20

// WallHandler serves the posts feed and its mutations.
type WallHandler struct {
	svc *wall.Service
}

// NewWallHandler creates a new wall handler.
func NewWallHandler(svc *wall.Service) *WallHandler {
	return &WallHandler{svc: svc}
}

// Posts returns one page of the sorted, filtered feed.
func (h *WallHandler) Posts(_ context.Context, req *dto.PostsRequest) (*wall.PageResult, error) {
	filter := wall.Filter(req.Filter)
	if filter == "" {
		filter = wall.FilterLatest
	}
	page := h.svc.Page(filter, req.Page, req.PerPage)
	return &page, nil
}

// Comments returns a post's full comment list.
func (h *WallHandler) Comments(_ context.Context, req *dto.CommentsRequest) (*dto.CommentsResponse, error) {
	comments, err := h.svc.Comments(req.PID)
	if err != nil {
		return nil, apiError(err)
	}
	return &dto.CommentsResponse{Status: dto.StatusSuccess, Comments: comments}, nil
}

// Like increments a post or comment like counter.
func (h *WallHandler) Like(_ context.Context, req *dto.LikeRequest) (*dto.LikeResponse, error) {
	likes, err := h.svc.Like(wall.LikeKind(req.Type), req.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &dto.LikeResponse{Status: dto.StatusSuccess, Likes: likes}, nil
}

// PublishPost handles the multipart post form: content, pname, portrait,
// device and up to three files under "images".
func (h *WallHandler) PublishPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, dto.BadRequest("invalid multipart form"))
		return
	}
	uploads, err := readUploads(r, "images")
	if err != nil {
		writeError(w, err)
		return
	}
	fields := wall.PostFields{
		Name:     r.FormValue("pname"),
		Portrait: r.FormValue("portrait"),
		Content:  r.FormValue("content"),
		Device:   r.FormValue("device"),
	}
	post, err := h.svc.Publish(fields, uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, dto.PublishResponse{Status: dto.StatusSuccess, PID: post.PID})
}

// PublishComment handles the multipart comment form on one post.
func (h *WallHandler) PublishComment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, dto.BadRequest("invalid multipart form"))
		return
	}
	uploads, err := readUploads(r, "images")
	if err != nil {
		writeError(w, err)
		return
	}
	fields := wall.CommentFields{
		Name:     r.FormValue("pname"),
		Portrait: r.FormValue("portrait"),
		Content:  r.FormValue("content"),
		Device:   r.FormValue("device"),
	}
	if _, err := h.svc.Comment(r.PathValue("pid"), fields, uploads); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: dto.StatusSuccess})
}

// readUploads reads every file under the given form key into memory.
func readUploads(r *http.Request, key string) ([]images.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var uploads []images.Upload
	for _, fh := range r.MultipartForm.File[key] {
		u, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader) (images.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return images.Upload{}, dto.BadRequest("failed to open upload " + fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return images.Upload{}, dto.BadRequest("failed to read upload " + fh.Filename)
	}
	return images.Upload{Name: fh.Filename, Data: data}, nil
}
