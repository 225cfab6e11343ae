package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/settings"
	"github.com/iconidentify/xreply/pkg/license"
	"github.com/iconidentify/xreply/pkg/shadow"
)

// Generator produces a reply for a prepared request.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerateRequest) (string, error)
}

// RelayService is the only component that talks to the generation API. It
// resolves settings, gates on the license and forwards the request. It does
// no caching.
type RelayService struct {
	config    repository.ConfigRepository
	license   license.Client
	generator shadow.Client
	logger    *slog.Logger
}

// NewRelayService creates a new relay service.
func NewRelayService(
	config repository.ConfigRepository,
	licenseClient license.Client,
	generator shadow.Client,
	logger *slog.Logger,
) *RelayService {
	return &RelayService{
		config:    config,
		license:   licenseClient,
		generator: generator,
		logger:    logger,
	}
}

// Generate implements Generator.
func (s *RelayService) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	modeID := strings.TrimSpace(req.Mode)
	if modeID == "" {
		return "", domain.ErrUnknownMode
	}
	req.Mode = modeID

	snap, err := s.config.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	mode := settings.ResolveMode(snap.Modes, modeID)
	if !mode.Enabled {
		s.logger.Info("rejected disabled mode", "mode", modeID)
		return "", domain.ErrModeDisabled
	}

	body := BuildShadowRequest(req, snap, mode)

	if err := s.license.Validate(ctx, snap.LicenseKey); err != nil {
		s.logger.Warn("license validation failed", "mode", modeID, "error", err)
		return "", err
	}

	s.logger.Info("sending generate request",
		"mode", modeID,
		"images", len(body.ImageURLs),
		"has_video", body.HasVideo,
		"persona_id", snap.ActivePersonaID,
	)

	reply, err := s.generator.Generate(ctx, snap.LicenseKey, body)
	if err != nil {
		s.logger.Error("generate failed", "mode", modeID, "status", domain.StatusOf(err), "error", err)
		return "", err
	}
	return reply, nil
}

// BuildShadowRequest composes the generate endpoint body from a request, the
// resolved settings and the effective mode.
func BuildShadowRequest(req domain.GenerateRequest, snap *repository.Snapshot, mode domain.ModeConfig) shadow.Request {
	label := mode.Label
	if label == "" {
		label = mode.ID
	}
	if label == "" {
		label = req.Mode
	}

	images := req.ImageURLs
	if images == nil {
		images = []string{}
	}
	hints := req.VideoHints
	if hints == nil {
		hints = []string{}
	}

	return shadow.Request{
		Mode:       req.Mode,
		TweetText:  req.TweetText,
		ImageURLs:  images,
		HasVideo:   req.HasVideo,
		VideoHints: hints,
		Settings: shadow.RequestSettings{
			MaxChars:       snap.GlobalSettings.MaxChars,
			Tone:           string(snap.GlobalSettings.Tone),
			Humanize:       snap.GlobalSettings.Humanize,
			ModeID:         req.Mode,
			ModeLabel:      label,
			PromptTemplate: mode.PromptTemplate,
		},
		GeneralPrompt: snap.GeneralPrompt,
		Persona:       snap.ActivePersona,
	}
}
