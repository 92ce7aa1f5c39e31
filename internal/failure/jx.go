package failure

import (
	"net/http"

	"github.com/go-faster/jx"
)

// EncodeError writes the error body shared by both services:
//
//	{"code": 422, "error": "out_of_stock", "message": "..."}
func EncodeError(status int, code, message string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("error")
	e.Str(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	return e.Bytes()
}

// DecodeRemote builds a RemoteError from a non-2xx response. Bodies that are
// not in the shared error format still yield an error carrying the status.
func DecodeRemote(status int, body []byte) *RemoteError {
	re := &RemoteError{Status: status, Code: codeForStatus(status)}
	if len(body) == 0 {
		return re
	}
	var code, message string
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "error":
			code, err = d.Str()
		case "message":
			message, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return re
	}
	if code != "" {
		re.Code = code
	}
	re.Message = message
	return re
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	default:
		return CodeInternal
	}
}
