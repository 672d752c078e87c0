package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"go.uber.org/zap"

	"atamind/internal/models"
	"atamind/internal/repository"
)

var (
	// ErrEmptyAudio is returned for uploads without content
	ErrEmptyAudio = errors.New("audio file is empty")
	// ErrVoiceAnalysisUnavailable wraps model failures while analysing a recording
	ErrVoiceAnalysisUnavailable = errors.New("voice analysis unavailable")
	ErrRecordingNotFound        = errors.New("recording not found")
)

// VoiceAnalyzer extracts a transcript and parenting cues from a recording
type VoiceAnalyzer interface {
	AnalyzeVoice(ctx context.Context, audio []byte, mimeType string) (*models.VoiceAnalysis, error)
}

// RecordingStore persists uploaded audio and returns its URI
type RecordingStore interface {
	SaveRecording(r io.Reader, mimeType string) (string, error)
	OpenRecording(uri string) (io.ReadSeekCloser, error)
	Remove(uris ...string)
}

// VoiceService analyses and stores guardian voice messages
type VoiceService struct {
	children  *ChildService
	voiceRepo *repository.VoiceRepository
	analyzer  VoiceAnalyzer
	store     RecordingStore
	log       *zap.Logger
}

// NewVoiceService creates a new voice service
func NewVoiceService(children *ChildService, voiceRepo *repository.VoiceRepository, analyzer VoiceAnalyzer, store RecordingStore, log *zap.Logger) *VoiceService {
	return &VoiceService{
		children:  children,
		voiceRepo: voiceRepo,
		analyzer:  analyzer,
		store:     store,
		log:       log.Named("voice"),
	}
}

// Analyze returns the analysis of a recording without storing anything
func (s *VoiceService) Analyze(ctx context.Context, audio []byte, mimeType string) (*models.VoiceAnalysis, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	analysis, err := s.analyzer.AnalyzeVoice(ctx, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVoiceAnalysisUnavailable, err)
	}
	return analysis, nil
}

// Record analyses a recording, then stores the file and the analysis.
// childID is optional and, when set, must belong to the guardian.
func (s *VoiceService) Record(ctx context.Context, guardianID string, childID *string, audio []byte, mimeType string) (*models.VoiceRecording, error) {
	if childID != nil && *childID != "" {
		if _, err := s.children.Get(ctx, guardianID, *childID); err != nil {
			return nil, err
		}
	} else {
		childID = nil
	}

	analysis, err := s.Analyze(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}

	uri, err := s.store.SaveRecording(bytes.NewReader(audio), mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store recording: %w", err)
	}

	rec := &models.VoiceRecording{
		GuardianID: guardianID,
		ChildID:    childID,
		FileURI:    uri,
		Analysis:   *analysis,
	}
	if err := s.voiceRepo.Create(ctx, rec); err != nil {
		s.store.Remove(uri)
		return nil, fmt.Errorf("failed to save recording: %w", err)
	}

	s.log.Info("voice recording stored", zap.String("recording_id", rec.ID), zap.Int("bytes", len(audio)))
	return rec, nil
}

// Open returns a recording owned by guardianID with its audio file.
// The caller closes the file.
func (s *VoiceService) Open(ctx context.Context, guardianID, recordingID string) (*models.VoiceRecording, io.ReadSeekCloser, error) {
	rec, err := s.voiceRepo.GetByID(ctx, recordingID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil || rec.GuardianID != guardianID {
		return nil, nil, ErrRecordingNotFound
	}
	f, err := s.store.OpenRecording(rec.FileURI)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrRecordingNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return rec, f, nil
}

// List returns the guardian's recordings, newest first
func (s *VoiceService) List(ctx context.Context, guardianID string) ([]models.VoiceRecording, error) {
	recs, err := s.voiceRepo.ListByGuardian(ctx, guardianID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	if recs == nil {
		recs = []models.VoiceRecording{}
	}
	return recs, nil
}
