package models

import "time"

// VoiceRecording is a stored guardian voice message and its analysis
type VoiceRecording struct {
	ID         string        `json:"id"`
	GuardianID string        `json:"guardian_id"`
	ChildID    *string       `json:"child_id"`
	FileURI    string        `json:"file_url"`
	Analysis   VoiceAnalysis `json:"analysis"`
	CreatedAt  time.Time     `json:"created_at"`
}
