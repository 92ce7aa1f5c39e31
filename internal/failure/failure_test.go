package failure

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: Unknown},
		{name: "validation", err: &ValidationError{Field: "email", Reason: "invalid format"}, want: Local},
		{name: "wrapped validation", err: errors.Wrap(&ValidationError{Field: "phone"}, "assemble"), want: Local},
		{name: "remote", err: &RemoteError{Status: 422, Code: CodeOutOfStock}, want: Remote},
		{name: "transport", err: &TransportError{Op: "create order", Err: context.DeadlineExceeded}, want: Transport},
		{name: "plain", err: errors.New("boom"), want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := errors.Wrap(&TransportError{Op: "apply coupon", Err: context.DeadlineExceeded}, "coupon")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHasCode(t *testing.T) {
	err := errors.Wrap(&RemoteError{Status: 422, Code: CodeInvalidCoupon, Message: "Coupon expired"}, "apply")

	assert.True(t, HasCode(err, CodeInvalidCoupon))
	assert.False(t, HasCode(err, CodeOutOfStock))
	assert.False(t, HasCode(errors.New("x"), CodeInvalidCoupon))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Coupon expired", Message(&RemoteError{Code: CodeInvalidCoupon, Message: "Coupon expired"}, "fallback"))
	assert.Equal(t, "fallback", Message(&RemoteError{Code: CodeInternal}, "fallback"))
	assert.Equal(t, "email: invalid format", Message(&ValidationError{Field: "email", Reason: "invalid format"}, "fallback"))
	assert.Equal(t, "fallback", Message(&TransportError{Op: "x", Err: context.Canceled}, "fallback"))
}

func TestDecodeRemote(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "shared format",
			status:      422,
			body:        string(EncodeError(422, CodeOutOfStock, "Brie is out of stock")),
			wantCode:    CodeOutOfStock,
			wantMessage: "Brie is out of stock",
		},
		{name: "empty body", status: 404, wantCode: CodeNotFound},
		{name: "html body", status: 502, body: "<html>bad gateway</html>", wantCode: CodeInternal},
		{name: "missing error code", status: 400, body: `{"code":400,"message":"bad"}`, wantCode: CodeBadRequest, wantMessage: "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := DecodeRemote(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, re.Status)
			assert.Equal(t, tt.wantCode, re.Code)
			assert.Equal(t, tt.wantMessage, re.Message)
		})
	}
}
