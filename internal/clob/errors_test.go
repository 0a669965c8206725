package clob

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport marker", wrapTransport(errors.New("connection reset by peer")), true},
		{"wrapped transport marker", fmt.Errorf("clob: 提交委托失败: %w", wrapTransport(errors.New("eof"))), true},
		{"deadline", context.DeadlineExceeded, true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"business rejection", errors.New("not enough balance / allowance"), false},
		{"signing failure", errors.New("clob: 非法委托价格 1.5000"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v)=%v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
