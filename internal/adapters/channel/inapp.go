package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// InAppDispatcher writes an unread row for the UI to poll. There is no transport.
type InAppDispatcher struct {
	repo core.InAppRepository
}

// NewInAppDispatcher constructs an InAppDispatcher.
func NewInAppDispatcher(repo core.InAppRepository) (*InAppDispatcher, error) {
	if repo == nil {
		return nil, errors.New("InAppRepository is required")
	}
	return &InAppDispatcher{repo: repo}, nil
}

// Channel implements core.ChannelDispatcher.
func (d *InAppDispatcher) Channel() model.Channel { return model.ChannelInApp }

// Send implements core.ChannelDispatcher. The message id is the new row id.
func (d *InAppDispatcher) Send(ctx context.Context, req model.SendRequest) model.DeliveryOutcome {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = strings.TrimSpace(req.Destination)
	}
	if userID == "" {
		return model.DeliveryFailed(errors.New("in_app: user id is required"))
	}

	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("in_app: encode metadata: %w", err))
	}
	if req.Metadata == nil {
		metadata = []byte("{}")
	}

	n := &model.InAppNotification{
		UserID:   userID,
		TenantID: req.TenantID,
		Title:    req.Subject,
		Body:     req.Body,
		Metadata: metadata,
	}
	if req.JobID != "" {
		jobID := req.JobID
		n.JobID = &jobID
	}

	stored, err := d.repo.Insert(ctx, n)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("in_app: %w", err))
	}
	return model.Delivered(stored.ID)
}
