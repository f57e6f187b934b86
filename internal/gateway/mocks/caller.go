package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// Caller 是 gateway.Caller 的 testify Mock 实现，供各层单元测试使用。
type Caller struct {
	mock.Mock
}

func (m *Caller) Call(ctx context.Context, procedure string, args ...any) (json.RawMessage, error) {
	callArgs := make([]interface{}, 0, len(args)+2)
	callArgs = append(callArgs, ctx, procedure)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	ret := m.Called(callArgs...)

	var result json.RawMessage
	if ret.Get(0) != nil {
		result = ret.Get(0).(json.RawMessage)
	}
	return result, ret.Error(1)
}
