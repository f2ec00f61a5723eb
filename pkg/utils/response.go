package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"timetrack-backend/pkg/apperr"
)

// Fields are merged into the top level of a response body, e.g.
// {"timer": ...} or {"timers": ..., "totalPages": 3}.
type Fields map[string]interface{}

// maxBodyBytes bounds request bodies read by ParseJSONBody.
const maxBodyBytes = 1 << 20

// WriteJSONResponse 写入JSON响应
func WriteJSONResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// 头已写出，只能放弃
		return
	}
}

// WriteSuccessResponse 写入成功响应: {success: true, message?, ...fields}
func WriteSuccessResponse(w http.ResponseWriter, statusCode int, message string, fields Fields) {
	body := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	if message != "" {
		body["message"] = message
	}
	WriteJSONResponse(w, statusCode, body)
}

// WriteOK is WriteSuccessResponse with 200.
func WriteOK(w http.ResponseWriter, message string, fields Fields) {
	WriteSuccessResponse(w, http.StatusOK, message, fields)
}

// WriteCreated is WriteSuccessResponse with 201.
func WriteCreated(w http.ResponseWriter, message string, fields Fields) {
	WriteSuccessResponse(w, http.StatusCreated, message, fields)
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes {success: false, message, error} for err. Errors that are
// not *apperr.Error are treated as internal. The wrapped cause is only
// exposed as "details" in development.
func WriteError(w http.ResponseWriter, r *http.Request, err error, devMode bool) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("internal server error", err)
	}
	status := StatusFor(appErr.Kind)

	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg(appErr.Message)
	} else {
		hlog.FromRequest(r).Debug().Str("kind", string(appErr.Kind)).Msg(appErr.Message)
	}

	body := make(map[string]interface{}, len(appErr.Data)+4)
	for k, v := range appErr.Data {
		body[k] = v
	}
	body["success"] = false
	body["message"] = appErr.Message
	body["error"] = string(appErr.Kind)
	if devMode && appErr.Err != nil {
		body["details"] = appErr.Err.Error()
	}
	WriteJSONResponse(w, status, body)
}

// ParseJSONBody 解析JSON请求体
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is required")
		}
		return apperr.BadRequest("invalid JSON body")
	}
	return nil
}

// DecodeAndValidate parses the body into v and checks its validate tags.
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := ParseJSONBody(r, v); err != nil {
		return err
	}
	return ValidateStruct(v)
}

// GetQueryParam 获取查询参数，如果不存在则返回默认值
func GetQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}
