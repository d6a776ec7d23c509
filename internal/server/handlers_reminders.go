package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/reminders"
	"github.com/gin-gonic/gin"
)

type reminderRequestPayload struct {
	MediaType  string    `json:"mediaType"`
	ExternalID int64     `json:"externalId"`
	Title      string    `json:"title"`
	FireAt     time.Time `json:"fireAt"`
}

func (h *httpHandler) handleScheduleReminder(c *gin.Context) {
	if h.reminders == nil {
		respondUnavailable(c)
		return
	}
	var request reminderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	session := currentSession(c)
	reminder, err := h.reminders.Schedule(reminders.Request{
		UserID:     session.UserID,
		MediaType:  request.MediaType,
		ExternalID: request.ExternalID,
		MediaTitle: request.Title,
		FireAt:     request.FireAt,
	})
	switch {
	case errors.Is(err, reminders.ErrReminderInPast):
		c.JSON(http.StatusBadRequest, gin.H{"error": messageChooseFutureTime})
		return
	case errors.Is(err, reminders.ErrMissingTitle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "title_required"})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reminder_unavailable"})
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

func (h *httpHandler) handleListReminders(c *gin.Context) {
	if h.reminders == nil {
		respondUnavailable(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": h.reminders.Pending(currentSession(c).UserID)})
}

func (h *httpHandler) handleCancelReminder(c *gin.Context) {
	if h.reminders == nil {
		respondUnavailable(c)
		return
	}
	if err := h.reminders.Cancel(currentSession(c).UserID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reminder_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ReminderDelivery returns the scheduler callback that pushes fired reminders to the user's event streams.
func ReminderDelivery(dispatcher *RealtimeDispatcher) func(reminders.Reminder) {
	return func(reminder reminders.Reminder) {
		dispatcher.Publish(RealtimeMessage{
			UserID:    reminder.UserID,
			EventType: RealtimeEventReminder,
			Payload:   reminder,
		})
	}
}
