package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendx/internal/constants"
)

// AttendanceHandler lists the in-memory attendance record.
type AttendanceHandler struct {
	recognizer Recognizer
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(rec Recognizer) *AttendanceHandler {
	return &AttendanceHandler{recognizer: rec}
}

// AttendanceRow is one row of the attendance listing.
type AttendanceRow struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// AttendanceResponse is the attendance listing.
type AttendanceResponse struct {
	Subject   string          `json:"subject"`
	SheetPath string          `json:"sheet_path"`
	Rows      []AttendanceRow `json:"rows"`
}

// List returns all attendance rows in first-mark order.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.recognizer.Entries()
	rows := make([]AttendanceRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, AttendanceRow{Name: e.Name, Time: e.At.Format(constants.TimeLayout)})
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Subject:   h.recognizer.Subject(),
		SheetPath: h.recognizer.SheetPath(),
		Rows:      rows,
	})
}
