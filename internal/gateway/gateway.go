package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrRemote 表示存储过程调用失败（连接、语法或约束错误）。
// 所有数据库侧失败统一归入此类，调用方只需返回通用的 500 响应。
var ErrRemote = errors.New("gateway: remote procedure call failed")

// Caller 定义了对外部存储过程的调用接口。
// procedure 必须来自调用方的固定白名单，绝不能由用户输入拼接。
type Caller interface {
	// Call 执行一次 SELECT <procedure>($1..$n) AS response 并返回
	// 第一行唯一结果列的 JSON 值。调用方不应对结果形状做进一步假设。
	Call(ctx context.Context, procedure string, args ...any) (json.RawMessage, error)
}

// Gateway 是 Caller 的 pgx 连接池实现。
// 并发调用的上界由连接池大小决定，超出的调用在池内排队等待。
type Gateway struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New 创建 Gateway 实例。
// timeout 是单次调用的超时时间，防止数据库停顿导致无限排队。
func New(pool *pgxpool.Pool, timeout time.Duration) *Gateway {
	if pool == nil {
		panic("pgx pool cannot be nil for Gateway")
	}
	return &Gateway{pool: pool, timeout: timeout}
}

// Call 执行存储过程并返回其单列 JSON 结果。
// 任何失败都会包装为 ErrRemote，并附带过程名以便日志定位。
func (g *Gateway) Call(ctx context.Context, procedure string, args ...any) (json.RawMessage, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	query := buildCall(procedure, len(args))

	var raw []byte
	if err := g.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		logrus.WithFields(logrus.Fields{
			"procedure": procedure,
			"arg_count": len(args),
		}).WithError(err).Error("Gateway: procedure call failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrRemote, procedure, err)
	}

	// SQL NULL 结果列映射为 JSON null
	if raw == nil {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(raw), nil
}

// buildCall 拼接形如 SELECT proc($1, $2) AS response 的查询文本。
// 只有占位符数量可变，过程名来自白名单常量。
func buildCall(procedure string, argCount int) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(procedure)
	sb.WriteByte('(')
	for i := 0; i < argCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "$%d", i+1)
	}
	sb.WriteString(") AS response")
	return sb.String()
}
