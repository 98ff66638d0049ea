package models

import "time"

type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Grade     int       `json:"grade"`
	Level     Level     `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateStudentRequest struct {
	Name  string `json:"name"`
	Grade int    `json:"grade"`
	Level Level  `json:"level"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
