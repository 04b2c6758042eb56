package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTriggerSweep(t *testing.T) {
	tests := []struct {
		name       string
		kind       string
		err        error
		wantStatus int
	}{
		{"started", "retention", nil, http.StatusAccepted},
		{"already running", "due-date", fmt.Errorf("%w: due-date", sweep.ErrSweepRunning), http.StatusConflict},
		{"unknown", "nightly", fmt.Errorf("%w: nightly", sweep.ErrUnknownSweep), http.StatusNotFound},
		{"shutting down", "retention", fmt.Errorf("%w: retention", sweep.ErrSchedulerStopped), http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			trigger := &MockSweepTrigger{}
			trigger.On("Trigger", mock.Anything, sweep.Kind(tc.kind)).Return(tc.err)
			h := NewAdminHandler(trigger, discardLogger())

			req := withURLParam(httptest.NewRequest(http.MethodPost, "/admin/sweeps/"+tc.kind, nil), "kind", tc.kind)
			rec := httptest.NewRecorder()
			h.TriggerSweep(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.err == nil {
				var resp SweepResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, SweepResponse{Sweep: tc.kind, Started: true}, resp)
			}
			trigger.AssertExpectations(t)
		})
	}
}

func TestListSweeps(t *testing.T) {
	trigger := &MockSweepTrigger{}
	trigger.On("Kinds").Return([]sweep.Kind{sweep.KindDailySummary, sweep.KindDueDate})
	trigger.On("Running", sweep.KindDailySummary).Return(false)
	trigger.On("Running", sweep.KindDueDate).Return(true)
	h := NewAdminHandler(trigger, discardLogger())

	rec := httptest.NewRecorder()
	h.ListSweeps(rec, httptest.NewRequest(http.MethodGet, "/admin/sweeps", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"sweep":"daily-summary","running":false},{"sweep":"due-date","running":true}]`, rec.Body.String())
}
