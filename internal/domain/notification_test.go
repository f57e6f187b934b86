package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0ra0000/sushi-go-backend/internal/domain"
)

func TestParseNotification_Valid(t *testing.T) {
	payload := `{"session_id":46,"event":"countdown","timeLeft":10}`

	n, err := domain.ParseNotification([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(46), n.SessionID)
	assert.Equal(t, "countdown", n.Event)
	assert.JSONEq(t, payload, string(n.Raw), "Raw 应保留完整原始负载")
}

func TestParseNotification_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"非 JSON", `{{{`},
		{"缺少 event", `{"session_id":1}`},
		{"event 为空串", `{"session_id":1,"event":""}`},
		{"缺少 session_id", `{"event":"countdown"}`},
		{"session_id 为负", `{"session_id":-3,"event":"countdown"}`},
		{"session_id 为小数", `{"session_id":4.5,"event":"countdown"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.ParseNotification([]byte(tc.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedNotification), "错误类型应为 ErrMalformedNotification")
		})
	}
}

func TestParseNotification_RawIsACopy(t *testing.T) {
	payload := []byte(`{"session_id":1,"event":"countdown"}`)

	n, err := domain.ParseNotification(payload)
	require.NoError(t, err)

	// 调用方复用缓冲区不应影响已解析的通知
	payload[0] = 'X'
	assert.JSONEq(t, `{"session_id":1,"event":"countdown"}`, string(n.Raw))
}
