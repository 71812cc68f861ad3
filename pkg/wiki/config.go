package wiki

import (
	"context"
	"errors"

	"github.com/inkstone-dev/inkstone/pkg/blob"
)

// RemoteConfig is the runtime configuration shared by all clients of a
// wiki, stored at <config-prefix>/wiki.json. It is optional: an absent
// object reads as defaults.
type RemoteConfig struct {
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	MaxAttachmentSize int64  `json:"maxAttachmentSize,omitempty"`
	PublicBaseURL     string `json:"publicBaseUrl,omitempty"`
}

// DefaultRemoteConfig returns the configuration used when wiki.json is
// absent or unreadable.
func DefaultRemoteConfig() *RemoteConfig {
	return &RemoteConfig{Title: "Wiki"}
}

// LoadRemoteConfig reads the shared runtime configuration, falling back to
// defaults when the object is absent. A present-but-malformed config also
// falls back (with a warning) rather than bricking every client. The
// loaded config takes effect on this Wiki (attachment ceiling, public
// base URL).
func (w *Wiki) LoadRemoteConfig(ctx context.Context) (*RemoteConfig, error) {
	const op = "load-config"
	rc := DefaultRemoteConfig()
	_, err := w.getJSON(ctx, op, w.configKey(), rc)
	switch {
	case err == nil:
	case errors.Is(err, blob.ErrNotFound):
		rc = DefaultRemoteConfig()
	case errors.Is(err, errMalformed):
		w.logger.Warn("wiki.json is malformed, using defaults", "err", err)
		rc = DefaultRemoteConfig()
	default:
		return nil, classify(op, w.configKey(), err)
	}
	if rc.Title == "" {
		rc.Title = DefaultRemoteConfig().Title
	}
	w.remote.Store(rc)
	return rc, nil
}

// SaveRemoteConfig writes the shared runtime configuration and applies it
// to this Wiki.
func (w *Wiki) SaveRemoteConfig(ctx context.Context, rc *RemoteConfig) error {
	const op = "save-config"
	if rc == nil {
		return invalid(op, w.configKey(), "config must not be nil")
	}
	if _, err := w.putJSON(ctx, op, w.configKey(), rc, ignoreToken); err != nil {
		return classify(op, w.configKey(), err)
	}
	cp := *rc
	w.remote.Store(&cp)
	return nil
}
