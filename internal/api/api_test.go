package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/service"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeAuditor map[int64]*service.AuditReport

func (a fakeAuditor) Audit(_ context.Context, userID int64) (*service.AuditReport, error) {
	r, ok := a[userID]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	if !r.Consistent {
		return r, fmt.Errorf("%w: mismatch", apperr.ErrInvariant)
	}
	return r, nil
}

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, NewHandler(fakePinger{}, fakeAuditor{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, NewHandler(fakePinger{err: errors.New("dial tcp: refused")}, fakeAuditor{}, nil), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAudit(t *testing.T) {
	auditor := fakeAuditor{
		1: {UserID: 1, Spendable: 900, LedgerSum: 900, Consistent: true, Totals: map[model.EntryType]int64{model.EntryBet: -100, model.EntryDeposit: 1000}},
		2: {UserID: 2, Spendable: 500, LedgerSum: 400, Consistent: false},
	}
	h := NewHandler(fakePinger{}, auditor, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/users/1/audit", http.StatusOK},
		{"/users/2/audit", http.StatusConflict},
		{"/users/3/audit", http.StatusNotFound},
		{"/users/abc/audit", http.StatusBadRequest},
		{"/users/-4/audit", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, serve(t, h, tt.path).Code)
		})
	}

	var report service.AuditReport
	require.NoError(t, json.Unmarshal(serve(t, h, "/users/1/audit").Body.Bytes(), &report))
	assert.Equal(t, int64(900), report.LedgerSum)
	assert.Equal(t, int64(-100), report.Totals[model.EntryBet])
}

func TestRounds(t *testing.T) {
	h := NewHandler(fakePinger{}, fakeAuditor{}, map[string]Counter{"crash": fixedCount(2), "mines": fixedCount(0)})
	rec := serve(t, h, "/rounds")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"crash":2,"mines":0}`, rec.Body.String())
}
