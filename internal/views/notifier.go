package views

import (
	"context"
	stderrors "errors"

	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notifier shows toasts on the page.
type Notifier struct {
	out Broadcaster
	log *zap.SugaredLogger
}

func NewNotifier(out Broadcaster) *Notifier {
	return &Notifier{out: out, log: logger.GetLogger().Named("notifier")}
}

func (n *Notifier) Info(ctx context.Context, message string) {
	n.log.Infow(message)
	n.toast(LevelInfo, message)
}

// Error shows the user-facing message of err. Missing permissions also list
// the scopes that were not granted.
func (n *Notifier) Error(ctx context.Context, err error) {
	if err == nil {
		return
	}
	message := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Type == apperrors.MissingPermissionsError && appErr.Detail != "" {
			message += ": " + appErr.Detail
		}
	}
	n.log.Warnw("Showing error to user", "message", message, "error", err)
	n.toast(LevelError, message)
}

func (n *Notifier) toast(level, message string) {
	n.out.Broadcast(types.ViewUpdate{
		Type:    types.ViewUpdateToast,
		View:    PageViewName,
		Level:   level,
		Message: message,
	})
}
