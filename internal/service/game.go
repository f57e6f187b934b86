package service

import (
	"context"
	"encoding/json"

	"github.com/s0ra0000/sushi-go-backend/internal/gateway"
)

// 存储过程白名单。过程名只出现在这里，绝不由用户输入构造。
const (
	procRegisterUser        = "register_user"
	procLoginUser           = "login_user"
	procResetPassword       = "reset_password"
	procGetSessions         = "get_sessions"
	procCreateSession       = "create_session"
	procDeleteSession       = "delete_session"
	procGetSession          = "get_session"
	procJoinSession         = "join_session"
	procLeaveSession        = "leave_session"
	procPlaceCardOnTable    = "place_card_on_table"
	procGetPlayerCards      = "get_player_cards"
	procGetPlayerTableCards = "get_player_table_cards"
	procGetTableCards       = "get_table_cards"
	procIsPlayerBelongs     = "is_player_belongs_session"
	procGetSessionPlayers   = "get_session_players"
)

// Game 是对外部存储过程的薄门面：每个方法对应一个过程，
// 只负责传参和转发结果，不包含任何业务逻辑——会话创建、鉴权、
// 出牌和回合规则全部在数据库侧执行。
type Game struct {
	gw gateway.Caller
}

// NewGame 创建 Game 服务实例。
func NewGame(gw gateway.Caller) *Game {
	if gw == nil {
		panic("gateway Caller cannot be nil for Game service")
	}
	return &Game{gw: gw}
}

// nullable 将空 token 映射为 SQL NULL，供鉴权可选的过程使用。
func nullable(token string) any {
	if token == "" {
		return nil
	}
	return token
}

// --- 用户认证 ---

func (g *Game) Register(ctx context.Context, username, password string) (json.RawMessage, error) {
	return g.gw.Call(ctx, procRegisterUser, username, password)
}

func (g *Game) Login(ctx context.Context, username, password string) (json.RawMessage, error) {
	return g.gw.Call(ctx, procLoginUser, username, password)
}

func (g *Game) ResetPassword(ctx context.Context, username, oldPassword, newPassword string) (json.RawMessage, error) {
	return g.gw.Call(ctx, procResetPassword, username, oldPassword, newPassword)
}

// --- 会话管理 ---

func (g *Game) Sessions(ctx context.Context, token string) (json.RawMessage, error) {
	return g.gw.Call(ctx, procGetSessions, token)
}

func (g *Game) CreateSession(ctx context.Context, token, sessionName string, moveDuration, playerCount int) (json.RawMessage, error) {
	return g.gw.Call(ctx, procCreateSession, token, sessionName, moveDuration, playerCount)
}

func (g *Game) DeleteSession(ctx context.Context, token, sessionID string) (json.RawMessage, error) {
	return g.gw.Call(ctx, procDeleteSession, token, sessionID)
}

func (g *Game) Session(ctx context.Context, token, sessionID string) (json.RawMessage, error) {
	return g.gw.Call(ctx, procGetSession, token, sessionID)
}

func (g *Game) JoinSession(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procJoinSession, token, sessionID)
}

// LeaveSession 调用 leave_session，token 允许为空（以 NULL 传递）。
func (g *Game) LeaveSession(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procLeaveSession, nullable(token), sessionID)
}

// IsPlayerBelongs 调用 is_player_belongs_session，token 允许为空（以 NULL 传递）。
func (g *Game) IsPlayerBelongs(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procIsPlayerBelongs, nullable(token), sessionID)
}

// --- 卡牌操作 ---

func (g *Game) PlaceCard(ctx context.Context, token string, sessionID, sessionCardID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procPlaceCardOnTable, token, sessionID, sessionCardID)
}

func (g *Game) PlayerCards(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procGetPlayerCards, token, sessionID)
}

func (g *Game) PlayerTableCards(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procGetPlayerTableCards, token, sessionID)
}

func (g *Game) TableCards(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	return g.gw.Call(ctx, procGetTableCards, token, sessionID)
}

// --- 成员快照 ---

// SessionPlayers 查询会话当前的玩家列表快照。
// 结果中的 players 字段缺失时返回空数组，便于直接广播。
func (g *Game) SessionPlayers(ctx context.Context, token string, sessionID int64) (json.RawMessage, error) {
	result, err := g.gw.Call(ctx, procGetSessionPlayers, token, sessionID)
	if err != nil {
		return nil, err
	}

	var response struct {
		Players json.RawMessage `json:"players"`
	}
	if err := json.Unmarshal(result, &response); err != nil || len(response.Players) == 0 || string(response.Players) == "null" {
		return json.RawMessage("[]"), nil
	}
	return response.Players, nil
}
