// Provides the generic adapters that turn typed handler functions into
// http.Handlers: metadata, rate limiting, body decoding, parameter
// binding and the error envelope.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wgwall/walld/internal/server/dto"
	"github.com/wgwall/walld/internal/server/ratelimit"
	"github.com/wgwall/walld/internal/server/reqctx"
	"github.com/wgwall/walld/internal/users"
)

// addRequestMetadata adds client IP and User-Agent to the context.
func addRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = reqctx.WithClientIP(ctx, reqctx.GetClientIP(r))
	ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// Wrap adapts fn with signature func(context.Context, *In) (*Out, error)
// into an http.Handler. Path parameters bind to `path:"name"` tags and
// query parameters to `query:"name"` tags; the body, if any, is JSON.
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadata(r.Context(), r)
		w, ok := s.checkRateLimit(w, r)
		if !ok {
			return
		}
		input := new(In)
		if !decodeBody(ctx, s, w, r, input) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)
		if err := PtrIn(input).Validate(); err != nil {
			writeErrorResponse(w, err)
			return
		}
		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth is Wrap plus bearer-token authentication; the resolved
// profile is available to fn via reqctx.User.
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadata(r.Context(), r)
		profile, err := s.authenticate(r)
		if err != nil {
			writeErrorResponse(w, dto.Unauthorized().Wrap(err))
			return
		}
		ctx = reqctx.WithUser(ctx, profile)
		w, ok := s.checkRateLimit(w, r)
		if !ok {
			return
		}
		input := new(In)
		if !decodeBody(ctx, s, w, r, input) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)
		if err := PtrIn(input).Validate(); err != nil {
			writeErrorResponse(w, err)
			return
		}
		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapRaw adapts a raw http.HandlerFunc, applying metadata, rate limit
// and the body size cap. Used by the multipart upload handlers.
func WrapRaw(s *Server, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadata(r.Context(), r)
		w, ok := s.checkRateLimit(w, r)
		if !ok {
			return
		}
		if s.cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		fn(w, r.WithContext(ctx))
	})
}

// checkRateLimit matches the request against the tier config. Returns
// the wrapped writer and whether the request may proceed.
func (s *Server) checkRateLimit(w http.ResponseWriter, r *http.Request) (http.ResponseWriter, bool) {
	tier := s.limits.Match(r.Method, r.URL.Path)
	if tier == nil {
		return w, true
	}
	result := tier.Limiter.Allow(ratelimit.BuildKey(reqctx.GetClientIP(r), tier.Name))
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		writeErrorResponse(w, dto.RateLimited(int(result.RetryAfter.Seconds())))
		return w, false
	}
	return w, true
}

// authenticate validates the bearer token and resolves the profile.
func (s *Server) authenticate(r *http.Request) (users.Profile, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return users.Profile{}, errors.New("missing authorization header")
	}
	scheme, tokenString, found := strings.Cut(authHeader, " ")
	if !found || scheme != "Bearer" {
		return users.Profile{}, errors.New("invalid authorization header")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return users.Profile{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return users.Profile{}, errors.New("invalid claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return users.Profile{}, errors.New("invalid user id in token")
	}
	profile, err := s.svc.Users.FindByID(userID)
	if err != nil {
		return users.Profile{}, errors.New("user not found")
	}
	return profile, nil
}

// decodeBody reads the size-capped request body and decodes JSON into
// input. Returns false if an error was already written to the response.
func decodeBody[In any](ctx context.Context, s *Server, w http.ResponseWriter, r *http.Request, input *In) bool {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeErrorResponse(w, dto.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeErrorResponse(w, dto.BadRequest("failed to read request body"))
		return false
	}
	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			writeErrorResponse(w, dto.BadRequest("invalid request body"))
			return false
		}
	}
	return true
}

// writeJSONResponse writes the handler output or the error envelope.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		var ews dto.ErrorWithStatus
		if !errors.As(err, &ews) || ews.StatusCode() >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "Handler error", "err", err)
		}
		writeErrorResponse(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// writeErrorResponse writes any error as the standard error envelope.
func writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	code := dto.ErrorCodeInternal
	message := "internal error"
	var ews dto.ErrorWithStatus
	if errors.As(err, &ews) {
		statusCode = ews.StatusCode()
		code = ews.Code()
		message = ews.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp := dto.ErrorResponse{Status: dto.StatusError, Code: code, Msg: message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}

// populatePathParams binds r.PathValue entries to fields tagged
// `path:"name"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		tag := typ.Field(i).Tag.Get("path")
		if tag == "" {
			continue
		}
		if v := r.PathValue(tag); v != "" && typ.Field(i).Type.Kind() == reflect.String {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams binds URL query entries to fields tagged
// `query:"name"`. Strings and ints are supported; a malformed int
// leaves the field at its zero value.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		tag := typ.Field(i).Tag.Get("query")
		if tag == "" {
			continue
		}
		v := query.Get(tag)
		if v == "" {
			continue
		}
		switch typ.Field(i).Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int:
			if n, err := strconv.Atoi(v); err == nil {
				elem.Field(i).SetInt(int64(n))
			}
		}
	}
}
