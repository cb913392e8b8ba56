package timeslot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/slotbook/slotbook/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test setup helper
func setupHandlerTest() (*Handler, *stubSlotRepository) {
	repo := newStubSlotRepository()
	repo.addUser(1, "alice@example.com")
	clock := &utils.MockClock{FixedNow: now}
	service := NewService(repo, clock)
	return NewHandler(service), repo
}

func createSlotRequest(t *testing.T, handler *Handler, dto CreateTimeSlotDTO) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(dto)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/time-slots", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.CreateTimeSlot(w, req)
	return w
}

func TestCreateTimeSlot(t *testing.T) {
	t.Run("should respond with the created slot", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		// when
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})

		// then
		assert.Equal(t, http.StatusCreated, w.Code)
		var dto TimeSlotDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.NotZero(t, dto.Id)
		assert.Equal(t, "AVAILABLE", dto.Status)
		assert.Equal(t, "alice@example.com", dto.UserEmail)
	})

	t.Run("should respond 400 for an invalid body", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		req := httptest.NewRequest(http.MethodPost, "/api/time-slots", bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()

		// when
		handler.CreateTimeSlot(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should respond 400 for a past range", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		// when
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(-2 * time.Hour),
			EndTime:   now.Add(-time.Hour),
		})

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should respond 404 for an unknown user", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		// when
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    42,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})

		// then
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should respond 400 for an overlapping slot", func(t *testing.T) {
		handler, _ := setupHandlerTest()
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})
		require.Equal(t, http.StatusCreated, w.Code)

		// when
		w = createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(3 * time.Hour),
		})

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetTimeSlotById(t *testing.T) {
	t.Run("should respond 404 for an unknown slot", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		req := httptest.NewRequest(http.MethodGet, "/api/time-slots/42", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "42"})
		w := httptest.NewRecorder()

		// when
		handler.GetTimeSlotById(w, req)

		// then
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should respond 400 for a non-numeric id", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		req := httptest.NewRequest(http.MethodGet, "/api/time-slots/abc", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "abc"})
		w := httptest.NewRecorder()

		// when
		handler.GetTimeSlotById(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteTimeSlot(t *testing.T) {
	t.Run("should respond 204 on success", func(t *testing.T) {
		handler, _ := setupHandlerTest()
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var dto TimeSlotDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))

		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/time-slots/%d", dto.Id), nil)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprintf("%d", dto.Id)})
		w = httptest.NewRecorder()

		// when
		handler.DeleteTimeSlot(w, req)

		// then
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("should respond 400 for a slot with a meeting", func(t *testing.T) {
		handler, repo := setupHandlerTest()
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var dto TimeSlotDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		repo.bindMeeting(dto.Id, 7)

		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/time-slots/%d", dto.Id), nil)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprintf("%d", dto.Id)})
		w = httptest.NewRecorder()

		// when
		handler.DeleteTimeSlot(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetUserAvailability(t *testing.T) {
	t.Run("should respond 400 for an invalid time", func(t *testing.T) {
		handler, _ := setupHandlerTest()

		req := httptest.NewRequest(http.MethodGet, "/api/time-slots/user/1/availability?start=not-a-time&end=2026-03-02T15:00:00Z", nil)
		req = mux.SetURLVars(req, map[string]string{"userId": "1"})
		w := httptest.NewRecorder()

		// when
		handler.GetUserAvailability(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should split slots into available and busy", func(t *testing.T) {
		handler, _ := setupHandlerTest()
		w := createSlotRequest(t, handler, CreateTimeSlotDTO{
			UserId:    1,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})
		require.Equal(t, http.StatusCreated, w.Code)

		url := fmt.Sprintf("/api/time-slots/user/1/availability?start=%s&end=%s",
			now.Format(time.RFC3339), now.Add(5*time.Hour).Format(time.RFC3339))
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req = mux.SetURLVars(req, map[string]string{"userId": "1"})
		w = httptest.NewRecorder()

		// when
		handler.GetUserAvailability(w, req)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		var dto AvailabilityDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.Equal(t, 1, dto.TotalAvailableSlots)
		assert.Zero(t, dto.TotalBusySlots)
	})
}
