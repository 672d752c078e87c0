package handlers

const (
	// maxJSONBody bounds request bodies decoded by decodeJSON
	maxJSONBody = 1 << 20

	ErrInvalidJSON           = "Invalid request body"
	ErrUnauthorized          = "Unauthorized"
	ErrInternalServerError   = "Internal server error"
	ErrInvalidCredentials    = "Invalid email or password"
	ErrEmailTaken            = "Email is already registered"
	ErrChildNotFound         = "Child not found"
	ErrStoryNotFound         = "Story not found"
	ErrStoryNotReviewable    = "Story is not awaiting review"
	ErrSessionNotFound       = "Session not found"
	ErrSessionClosed         = "Session already ended"
	ErrEmptyAudio            = "Audio file is empty"
	ErrMissingAudio          = "Audio file is required"
	ErrGenerationUnavailable = "story generation temporarily unavailable"
	ErrAnalysisUnavailable   = "voice analysis temporarily unavailable"
	ErrRecordingNotFound     = "Recording not found"
	ErrProviderNotConfigured = "OAuth provider not configured"
)
