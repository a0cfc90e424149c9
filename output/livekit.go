package output

import (
	"context"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pkg/errors"
)

// DataTopic is the LiveKit data topic room messages are published on.
const DataTopic = "translation"

// DataSender is the subset of the LiveKit room service used here.
type DataSender interface {
	SendData(ctx context.Context, req *livekit.SendDataRequest) (*livekit.SendDataResponse, error)
}

// LiveKitSink publishes room messages as reliable data packets.
type LiveKitSink struct {
	client DataSender
	topic  string
}

func NewLiveKitSink(url, apiKey, apiSecret string) *LiveKitSink {
	return NewLiveKitSinkWithClient(lksdk.NewRoomServiceClient(url, apiKey, apiSecret))
}

func NewLiveKitSinkWithClient(client DataSender) *LiveKitSink {
	return &LiveKitSink{client: client, topic: DataTopic}
}

func (s *LiveKitSink) Name() string { return "livekit" }

func (s *LiveKitSink) Send(ctx context.Context, roomID string, payload []byte) error {
	topic := s.topic
	_, err := s.client.SendData(ctx, &livekit.SendDataRequest{
		Room:  roomID,
		Data:  payload,
		Kind:  livekit.DataPacket_RELIABLE,
		Topic: &topic,
	})
	if err != nil {
		return errors.Wrapf(err, "livekit send data to room %s", roomID)
	}
	return nil
}
