package engine

import (
	"fmt"

	"github.com/doodlejam/doodlejam"
)

type (
	// Player owns the synth and runs on the audio thread. It is controlled by
	// messages from the engine via the broker, allocates voices within the
	// voice range of each family, and sends every rendered buffer to the
	// output tap. Errors never stop the audio thread: they are sent to the
	// engine as Alerts and the player outputs silence from then on.
	Player struct {
		synth       doodlejam.Synth
		palette     doodlejam.Palette
		voices      []voice
		autoRelease int // samples; 0 disables
		err         error

		broker *Broker // nil when rendering offline
	}

	voice struct {
		id                doodlejam.SoundID
		sustain           bool
		autoRelease       bool
		samplesSinceEvent int
	}
)

// NewPlayer returns a player rendering synth, which must have been built for
// palette. broker may be nil, in which case messages, the output tap and
// alerts are disabled and the player is driven by direct method calls.
func NewPlayer(broker *Broker, synth doodlejam.Synth, palette doodlejam.Palette, autoRelease int) *Player {
	return &Player{
		synth:       synth,
		palette:     palette,
		voices:      make([]voice, palette.NumVoices()),
		autoRelease: autoRelease,
		broker:      broker,
	}
}

// Process handles the pending messages, renders the whole buffer and sends a
// copy of it to the output tap.
func (p *Player) Process(buffer doodlejam.AudioBuffer) {
	p.processMessages()
	if err := p.Render(buffer); err != nil {
		p.SendAlert("PlayerCrash", err.Error(), Error)
	}
	if p.broker == nil {
		return
	}
	bufPtr := p.broker.GetAudioBuffer() // borrow a buffer from the broker
	*bufPtr = append(*bufPtr, buffer...)
	if len(*bufPtr) == 0 || !TrySend(p.broker.ToRecorder, bufPtr) {
		// if the buffer is empty or sending the rendered waveform to the
		// tap failed, return the buffer to the broker
		p.broker.PutAudioBuffer(bufPtr)
	}
}

// Render fills the buffer, releasing auto-release voices at the exact sample
// their time runs out. After a render error, the synth is dropped and Render
// outputs silence; the error is returned only once.
func (p *Player) Render(buffer doodlejam.AudioBuffer) error {
	for len(buffer) > 0 {
		n := min(len(buffer), p.samplesUntilAutoRelease())
		if p.synth == nil {
			clear(buffer[:n])
		} else if err := p.synth.Render(buffer[:n]); err != nil {
			p.synth = nil
			p.err = fmt.Errorf("synth.Render: %w", err)
			clear(buffer)
			return p.err
		}
		buffer = buffer[n:]
		for i := range p.voices {
			v := &p.voices[i]
			v.samplesSinceEvent += n
			if v.sustain && v.autoRelease && p.autoRelease > 0 && v.samplesSinceEvent >= p.autoRelease {
				p.releaseVoice(i)
			}
		}
	}
	return nil
}

// Err returns the error that made the player drop its synth, if any.
func (p *Player) Err() error {
	return p.err
}

func (p *Player) samplesUntilAutoRelease() int {
	ret := int(^uint(0) >> 1)
	if p.autoRelease <= 0 {
		return ret
	}
	for _, v := range p.voices {
		if v.sustain && v.autoRelease {
			ret = min(ret, max(p.autoRelease-v.samplesSinceEvent, 1))
		}
	}
	return ret
}

func (p *Player) processMessages() {
	if p.broker == nil {
		return
	}
loop:
	for { // process new message
		select {
		case msg := <-p.broker.ToPlayer:
			switch m := msg.(type) {
			case NoteOnMsg:
				p.Trigger(m.ID, m.Sound, m.AutoRelease)
			case NoteOffMsg:
				p.Release(m.ID)
			case MixMsg:
				p.SetMix(m.Mix)
			case StopAllMsg:
				p.ReleaseAll()
			default:
				// ignore unknown messages
			}
		default:
			break loop
		}
	}
}

// Trigger starts a voice for the sound within its family's voice range. A
// voice already playing the same id is released first. If the palette has no
// instrument for the family, the melodic instrument plays it.
func (p *Player) Trigger(id doodlejam.SoundID, sound doodlejam.Sound, autoRelease bool) {
	p.Release(id)
	if p.synth == nil {
		return
	}
	voiceStart, voiceEnd, ok := p.palette.VoicesForFamily(sound.Family)
	if !ok {
		if voiceStart, voiceEnd, ok = p.palette.VoicesForFamily(doodlejam.FamilyMelodic); !ok {
			return
		}
	}
	var age int = 0
	oldestReleased := false
	oldestVoice := voiceStart
	for i := voiceStart; i < voiceEnd; i++ {
		// find a suitable voice to trigger. if the voice has been released,
		// then we prefer to trigger that over a voice that is still playing. in
		// case two voices are both playing or both are released, we prefer
		// the older one
		if (!p.voices[i].sustain && !oldestReleased) ||
			(!p.voices[i].sustain == oldestReleased && p.voices[i].samplesSinceEvent >= age) {
			oldestVoice = i
			oldestReleased = !p.voices[i].sustain
			age = p.voices[i].samplesSinceEvent
		}
	}
	p.voices[oldestVoice] = voice{id: id, sustain: true, autoRelease: autoRelease}
	p.synth.Trigger(oldestVoice, sound.Note)
}

// Release releases the voice playing id.
func (p *Player) Release(id doodlejam.SoundID) {
	for i := range p.voices {
		if p.voices[i].id == id && p.voices[i].sustain {
			p.releaseVoice(i)
			return
		}
	}
}

// ReleaseAll releases every sounding voice.
func (p *Player) ReleaseAll() {
	for i := range p.voices {
		if p.voices[i].sustain {
			p.releaseVoice(i)
		}
	}
}

// Sounding returns the ids of the voices not yet released, in voice order.
func (p *Player) Sounding() []doodlejam.SoundID {
	var ret []doodlejam.SoundID
	for _, v := range p.voices {
		if v.sustain {
			ret = append(ret, v.id)
		}
	}
	return ret
}

func (p *Player) SetMix(mix doodlejam.MixingPreset) {
	if p.synth != nil {
		p.synth.SetMix(mix)
	}
}

func (p *Player) releaseVoice(i int) {
	p.voices[i].sustain = false
	p.voices[i].samplesSinceEvent = 0
	if p.synth != nil {
		p.synth.Release(i)
	}
}

// SendAlert is non-blocking, so that the audio thread cannot end up in a
// dead-lock.
func (p *Player) SendAlert(name, message string, priority AlertPriority) {
	if p.broker == nil {
		return
	}
	TrySend(p.broker.ToEngine, Alert{Name: name, Message: message, Priority: priority})
}
