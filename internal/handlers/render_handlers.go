// Package handlers is the thin HTTP glue over the render pipeline and job
// registry. Routing stays shallow; all depth lives in the pipeline.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/models"
	"adreel/internal/pipeline"
	"adreel/internal/registry"
	"adreel/internal/worker"
)

var validate = validator.New()

// ApplicationHandler carries the shared dependencies for all routes.
type ApplicationHandler struct {
	Log        *logrus.Logger
	Pipeline   *pipeline.Pipeline
	Registry   *registry.Registry
	Dispatcher *worker.Dispatcher
}

// RenderVideoRequest is the POST /api/v1/videos payload.
type RenderVideoRequest struct {
	AccountID   string `json:"account_id" validate:"required"`
	Title       string `json:"title" validate:"required_without=Context"`
	Description string `json:"description"`
	Context     string `json:"context"`
	Category    string `json:"category"`
	Tone        string `json:"tone"`
	Voice       string `json:"voice"`

	Segments []pipeline.SegmentInput `json:"segments"`

	VideoKeys []string `json:"video_keys"`
	PhotoKeys []string `json:"photo_keys"`

	WithMusic    bool `json:"with_music"`
	WithCaptions bool `json:"with_captions"`
}

// renderJob adapts one render request to the worker pool and reports its
// outcome back to the waiting handler.
type renderJob struct {
	id     string
	run    func() (*models.RenderResult, error)
	result chan renderOutcome
}

type renderOutcome struct {
	result *models.RenderResult
	err    error
}

func (j *renderJob) ID() string { return j.id }

func (j *renderJob) Execute() error {
	res, err := j.run()
	j.result <- renderOutcome{result: res, err: err}
	return err
}

// RenderVideo handles POST /api/v1/videos. The request runs through the
// bounded render pool; the handler blocks until the render completes and
// returns the job descriptor.
func (h *ApplicationHandler) RenderVideo(c *fiber.Ctx) error {
	payload := new(RenderVideoRequest)
	if err := c.BodyParser(payload); err != nil {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
	}

	req := pipeline.Request{
		AccountID:    payload.AccountID,
		Title:        payload.Title,
		Description:  payload.Description,
		Context:      payload.Context,
		Category:     payload.Category,
		Tone:         payload.Tone,
		Voice:        payload.Voice,
		Segments:     payload.Segments,
		VideoKeys:    payload.VideoKeys,
		PhotoKeys:    payload.PhotoKeys,
		WithMusic:    payload.WithMusic,
		WithCaptions: payload.WithCaptions,
	}

	job := &renderJob{
		id:     uuid.NewString(),
		result: make(chan renderOutcome, 1),
		run: func() (*models.RenderResult, error) {
			return h.Pipeline.Render(context.Background(), req)
		},
	}
	if err := h.Dispatcher.Submit(job); err != nil {
		return respondError(c, fiber.StatusTooManyRequests, err.Error())
	}

	outcome := <-job.result
	if outcome.err != nil {
		status, msg := statusForError(outcome.err)
		h.Log.WithField("account", payload.AccountID).WithError(outcome.err).Error("render request failed")
		return respondError(c, status, msg)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"data":   outcome.result,
	})
}

// GetJob handles GET /api/v1/videos/:jobId.
func (h *ApplicationHandler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := uuid.Parse(jobID); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid job id format")
	}

	job, ok := h.Registry.Get(jobID)
	if !ok {
		return respondError(c, fiber.StatusNotFound, "job not found")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   job,
	})
}

// DeleteJob handles DELETE /api/v1/videos/:jobId.
func (h *ApplicationHandler) DeleteJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := uuid.Parse(jobID); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid job id format")
	}

	if !h.Registry.Delete(jobID) {
		return respondError(c, fiber.StatusNotFound, "job not found")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "job deleted",
	})
}

// statusForError maps the pipeline error taxonomy to HTTP responses, keeping
// the originating stage visible to the caller.
func statusForError(err error) (int, string) {
	var (
		insufficient *apperr.InsufficientFundsError
		notFound     *apperr.AccountNotFoundError
		script       *apperr.ScriptGenerationError
		voice        *apperr.VoiceSynthesisError
		background   *apperr.BackgroundMediaError
		composition  *apperr.CompositionError
		storageErr   *apperr.StorageError
	)
	switch {
	case errors.As(err, &insufficient):
		return fiber.StatusPaymentRequired, insufficient.Error()
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, notFound.Error()
	case errors.As(err, &script):
		return fiber.StatusBadGateway, script.Error()
	case errors.As(err, &voice):
		return fiber.StatusBadGateway, voice.Error()
	case errors.As(err, &background):
		return fiber.StatusBadGateway, background.Error()
	case errors.As(err, &composition):
		return fiber.StatusInternalServerError, composition.Error()
	case errors.As(err, &storageErr):
		return fiber.StatusBadGateway, storageErr.Error()
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}
