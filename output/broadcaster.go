// Package output delivers pipeline outcomes to room members: JSON room
// messages over every configured sink and paced PCM frames on per-language
// output tracks.
package output

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/telemetry"
	"github.com/mrsingh-rishi/voice-translate/tts"
	"github.com/mrsingh-rishi/voice-translate/types"
)

// Sink carries room messages to room members.
type Sink interface {
	Name() string
	Send(ctx context.Context, roomID string, payload []byte) error
}

// Broadcaster publishes outcomes to every sink and feeds synthesized PCM into
// the output tracks.
type Broadcaster struct {
	sinks   []Sink
	tracks  *Tracks
	logger  *slog.Logger
	metrics *telemetry.PipelineMetrics
}

func NewBroadcaster(tracks *Tracks, logger *slog.Logger, metrics *telemetry.PipelineMetrics, sinks ...Sink) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		sinks:   sinks,
		tracks:  tracks,
		logger:  logger.With("component", "broadcaster"),
		metrics: metrics,
	}
}

// Message shapes a delivery as the room-wide translation message.
func Message(d model.Delivery) types.RoomMessage {
	return types.RoomMessage{
		Type:           types.RoomMessageTranslation,
		SpeakerID:      d.SpeakerID,
		SpeakerName:    d.SpeakerName,
		SourceLanguage: d.SourceLanguage,
		Transcript:     d.Outcome.Transcript.Text,
		Translations:   d.Outcome.Translations(),
	}
}

// Publish sends d to the room. Every sink is attempted; the returned error
// lists the failing sinks. Deliveries without a room or results are skipped.
func (b *Broadcaster) Publish(ctx context.Context, d model.Delivery) error {
	if d.RoomID == "" || d.Outcome.Empty() {
		return nil
	}
	payload, err := json.Marshal(Message(d))
	if err != nil {
		return errors.Wrap(err, "marshal room message")
	}

	var failed []string
	for _, sink := range b.sinks {
		if err := sink.Send(ctx, d.RoomID, payload); err != nil {
			b.metrics.DeliveryFailed(ctx, sink.Name())
			b.logger.Warn("room delivery failed",
				"sink", sink.Name(), "room_id", d.RoomID, "speaker_id", d.SpeakerID, "error", err)
			failed = append(failed, sink.Name()+": "+err.Error())
		}
	}

	if b.tracks != nil {
		for _, item := range d.Outcome.Items {
			if item.Audio == nil {
				continue
			}
			frames := tts.Frames(*item.Audio, tts.FrameDuration)
			if len(frames) == 0 {
				continue
			}
			b.tracks.Push(d.RoomID, item.Translation.TargetLanguage, frames)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("room %s delivery failed: %s", d.RoomID, strings.Join(failed, "; "))
	}
	return nil
}
