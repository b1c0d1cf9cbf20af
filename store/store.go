// Package store persists calls, transcript turns, and agent actions in
// Postgres via bun. Write failures never abort a live conversation; the
// session layer logs and swallows them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

type Config struct {
	DSN string `split_words:"true" required:"true"`
}

type DB struct {
	bun *bun.DB
	now func() time.Time
}

func New(cfg Config) *DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return &DB{
		bun: bun.NewDB(sqldb, pgdialect.New()),
		now: time.Now,
	}
}

// Init creates missing tables. Idempotent.
func (d *DB) Init(ctx context.Context) error {
	for _, model := range []any{(*Call)(nil), (*TranscriptTurn)(nil), (*AgentAction)(nil)} {
		if _, err := d.bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.bun.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.bun.Close()
}

func (d *DB) CreateCall(ctx context.Context, callID, callerNumber string) (*Call, error) {
	call := &Call{
		ID:           callID,
		CallerNumber: callerNumber,
		Status:       "active",
		StartTS:      d.now().UTC(),
	}
	if _, err := d.bun.NewInsert().Model(call).Exec(ctx); err != nil {
		return nil, err
	}
	return call, nil
}

func (d *DB) GetCall(ctx context.Context, callID string) (*Call, error) {
	call := new(Call)
	err := d.bun.NewSelect().Model(call).Where("c.id = ?", callID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return call, nil
}

func (d *DB) ListCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var calls []Call
	err := d.bun.NewSelect().Model(&calls).Order("start_ts DESC").Limit(limit).Scan(ctx)
	return calls, err
}

func (d *DB) ListTurns(ctx context.Context, callID string) ([]TranscriptTurn, error) {
	var turns []TranscriptTurn
	err := d.bun.NewSelect().Model(&turns).
		Where("t.call_id = ?", callID).
		Order("timestamp ASC").
		Scan(ctx)
	return turns, err
}

func (d *DB) ListActions(ctx context.Context, callID string) ([]AgentAction, error) {
	var actions []AgentAction
	err := d.bun.NewSelect().Model(&actions).
		Where("a.call_id = ?", callID).
		Order("created_at ASC").
		Scan(ctx)
	return actions, err
}

// AppendTranscript implements contract.TranscriptStore.
func (d *DB) AppendTranscript(ctx context.Context, callID string, role contractx.Role, content string) error {
	turn := &TranscriptTurn{
		ID:        uuid.NewString(),
		CallID:    callID,
		Role:      string(role),
		Content:   content,
		Timestamp: d.now().UTC(),
	}
	_, err := d.bun.NewInsert().Model(turn).Exec(ctx)
	return err
}

// FinishCall implements contract.TranscriptStore.
func (d *DB) FinishCall(ctx context.Context, callID, fullTranscript string) error {
	end := d.now().UTC()
	_, err := d.bun.NewUpdate().Model((*Call)(nil)).
		Set("status = ?", "completed").
		Set("transcript_full = ?", fullTranscript).
		Set("end_ts = ?", end).
		Where("id = ?", callID).
		Exec(ctx)
	return err
}

// CreateAction implements contract.ActionStore.
func (d *DB) CreateAction(ctx context.Context, callID, actionType string, params map[string]any) (string, error) {
	now := d.now().UTC()
	action := &AgentAction{
		ID:         uuid.NewString(),
		CallID:     callID,
		ActionType: actionType,
		Params:     params,
		Status:     "pending",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := d.bun.NewInsert().Model(action).Exec(ctx); err != nil {
		return "", err
	}
	return action.ID, nil
}

// UpdateActionStatus implements contract.ActionStore.
func (d *DB) UpdateActionStatus(ctx context.Context, actionID, status string, result map[string]any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = d.bun.NewUpdate().Model((*AgentAction)(nil)).
		Set("status = ?", status).
		Set("result = ?", string(payload)).
		Set("updated_at = ?", d.now().UTC()).
		Where("id = ?", actionID).
		Exec(ctx)
	return err
}
