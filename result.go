package doodlejam

type (
	// RecordingResult is produced once, when a recording is stopped. Audio is
	// a 16-bit stereo WAV file; Duration is the wall-clock length of the
	// recording in seconds, silences included.
	RecordingResult struct {
		Audio    []byte
		Duration float64
		EventLog EventLog
		Loudness Loudness
	}

	// Loudness summarizes the level of a recording: integrated loudness in
	// LUFS and sample peak in dBFS.
	Loudness struct {
		Integrated float32
		Peak       float32
	}

	// Stats are the aggregate numbers reported when a session ends.
	Stats struct {
		NoteCount   int
		UniqueNotes map[SoundID]struct{}
		Duration    float64 // seconds
		EventLog    EventLog
	}
)
