package session

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// OutboundAudioFunc delivers one synthesized audio chunk to the
// transport. Implementations drop the chunk when the connection is gone.
type OutboundAudioFunc func(chunk []byte)

// AudioRelay forwards audio between the transport and the speech channel
// for one call. Both directions preserve arrival order and never split,
// merge, or transcode chunks. Once the call is inactive, inbound chunks
// are dropped rather than queued.
type AudioRelay struct {
	callID   string
	speech   contractx.SpeechSession
	active   *atomic.Bool
	outbound OutboundAudioFunc
}

func newAudioRelay(callID string, speech contractx.SpeechSession, active *atomic.Bool, outbound OutboundAudioFunc) *AudioRelay {
	return &AudioRelay{callID: callID, speech: speech, active: active, outbound: outbound}
}

// ForwardInbound pushes one transport audio chunk into the speech
// channel.
func (r *AudioRelay) ForwardInbound(chunk []byte) {
	if !r.active.Load() {
		log.Debug().Str("call_id", r.callID).Msg("dropping audio for inactive call")
		return
	}
	if err := r.speech.SendAudio(chunk); err != nil {
		log.Warn().Err(err).Str("call_id", r.callID).Msg("could not forward inbound audio")
	}
}

// ForwardOutbound pushes one synthesized chunk back to the transport.
func (r *AudioRelay) ForwardOutbound(chunk []byte) {
	if r.outbound == nil || !r.active.Load() {
		return
	}
	r.outbound(chunk)
}
