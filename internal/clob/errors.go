package clob

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrTransport 表示委托未到达交易所的网络层故障；
	// 与 PostResult 承载的业务拒单严格区分，后者不可重试。
	ErrTransport = errors.New("网络层故障")
)

// wrapTransport 给传输故障打上 ErrTransport 标记，保留原始错误文本。
func wrapTransport(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// IsRetryable 判断错误是否为可重试的传输故障。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}
