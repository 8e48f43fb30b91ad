package httputil

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tidwall/gjson"

	"github.com/xeptore/spotstat/jsonv"
	"github.com/xeptore/spotstat/unit"
)

const maxResponseBodySize = 8 * unit.Mebibyte

var ErrNotJSON = errors.New("response body is not json")

func ReadResponseBody(resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if nil != err {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if len(respBody) == 0 {
		return nil, io.EOF
	}

	return respBody, nil
}

func ReadOptionalResponseBody(resp *http.Response) ([]byte, error) {
	respBody, err := ReadResponseBody(resp)
	if nil != err && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return respBody, nil
}

// DecodeJSONValue decodes body into an order-preserving value. The
// Content-Type header is trusted when it says JSON, otherwise the body is
// sniffed before decoding.
func DecodeJSONValue(header http.Header, body []byte) (jsonv.Value, error) {
	if !isJSONMediaType(header.Get("Content-Type")) {
		if mt := mimetype.Detect(body); !mt.Is("application/json") {
			return jsonv.Value{}, fmt.Errorf("%w: detected %s", ErrNotJSON, mt.String())
		}
	}

	v, err := jsonv.Parse(body)
	if nil != err {
		return jsonv.Value{}, err
	}

	return v, nil
}

func isJSONMediaType(contentType string) bool {
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if nil != err {
		return false
	}

	return mediaType == "application/json"
}

// APIError is the error object of the Web API:
//
//	{"error": {"status": 401, "message": "The access token expired"}}
type APIError struct {
	Status  int
	Message string
}

func ParseAPIError(b []byte) (APIError, bool) {
	if !gjson.ValidBytes(b) {
		return APIError{}, false
	}

	res := gjson.GetBytes(b, "error")
	if res.Type != gjson.JSON {
		return APIError{}, false
	}

	return APIError{
		Status:  int(res.Get("status").Int()),
		Message: res.Get("message").String(),
	}, true
}

func IsTokenExpiredResponse(b []byte) bool {
	apiErr, ok := ParseAPIError(b)

	return ok && apiErr.Status == http.StatusUnauthorized && apiErr.Message == "The access token expired"
}

// OAuthError is the error shape of the accounts service:
//
//	{"error": "invalid_grant", "error_description": "Invalid refresh token"}
type OAuthError struct {
	Code        string
	Description string
}

func ParseOAuthError(b []byte) (OAuthError, bool) {
	if !gjson.ValidBytes(b) {
		return OAuthError{}, false
	}

	code := gjson.GetBytes(b, "error")
	if code.Type != gjson.String {
		return OAuthError{}, false
	}

	return OAuthError{
		Code:        code.String(),
		Description: gjson.GetBytes(b, "error_description").String(),
	}, true
}

func IsInvalidGrantResponse(b []byte) bool {
	oauthErr, ok := ParseOAuthError(b)

	return ok && oauthErr.Code == "invalid_grant"
}

// ErrorMessage renders whichever error shape b carries, falling back to the
// raw body.
func ErrorMessage(b []byte) string {
	if apiErr, ok := ParseAPIError(b); ok {
		return fmt.Sprintf("%d: %s", apiErr.Status, apiErr.Message)
	}

	if oauthErr, ok := ParseOAuthError(b); ok {
		if oauthErr.Description == "" {
			return oauthErr.Code
		}

		return oauthErr.Code + ": " + oauthErr.Description
	}

	return string(b)
}
