package api

import "shift-booking-backend/internal/jobs"

// SampleShifts returns the fixed batch booked by the test-book endpoint.
func SampleShifts() []jobs.ShiftInput {
	return []jobs.ShiftInput{
		{CompanyID: "acme-corp", UserID: "user001", StartTime: "2025-06-15T08:00:00", EndTime: "2025-06-15T16:00:00", Action: "add"},
		{CompanyID: "tech-corp", UserID: "user002", StartTime: "2025-06-15T09:00:00", EndTime: "2025-06-15T17:00:00", Action: "add"},
		{CompanyID: "work-corp", UserID: "user003", StartTime: "2025-06-15T10:00:00", EndTime: "2025-06-15T18:00:00", Action: "add"},
		{CompanyID: "name-corp", UserID: "user004", StartTime: "2025-06-15T11:00:00", EndTime: "2025-06-15T19:00:00", Action: "add"},
		{CompanyID: "juice-corp", UserID: "user005", StartTime: "2025-06-15T12:00:00", EndTime: "2025-06-15T20:00:00", Action: "add"},
		{CompanyID: "bree-corp", UserID: "user006", StartTime: "2025-06-15T13:00:00", EndTime: "2025-06-15T21:00:00", Action: "add"},
		{CompanyID: "acme-corp", UserID: "user007", StartTime: "2025-06-15T14:00:00", EndTime: "2025-06-15T22:00:00", Action: "add"},
		{CompanyID: "acme-corp", UserID: "user008", StartTime: "2025-06-15T15:00:00", EndTime: "2025-06-15T23:00:00", Action: "add"},
		{CompanyID: "acme-corp", UserID: "user009", StartTime: "2025-06-16T08:00:00", EndTime: "2025-06-16T16:00:00", Action: "add"},
		{CompanyID: "acme-corp", UserID: "user010", StartTime: "2025-06-16T09:00:00", EndTime: "2025-06-16T17:00:00", Action: "add"},
	}
}
